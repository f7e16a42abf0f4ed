package cmd

import (
	"log"
	"os"

	"github.com/josephlewis42/minish/core"
	"github.com/josephlewis42/minish/core/logger"
	"github.com/josephlewis42/minish/core/proc"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var commandLine string

// shellCmd runs the interactive shell
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run the shell on the current terminal.",
	Long: `Run the shell on the current terminal. If stdin isn't a terminal,
lines are read from it until end of input.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		status, err := runShell(cmd)
		if err != nil {
			return err
		}
		if status != 0 {
			os.Exit(status)
		}
		return nil
	},
}

func runShell(cmd *cobra.Command) (int, error) {
	appLogger := log.New(cmd.ErrOrStderr(), "["+core.ShellName+"] ", 0)

	cfg, err := loadConfig()
	if err != nil {
		return 0, err
	}

	events := logger.NewNopLogger()
	if cfg.EventLog != "" {
		logFd, err := cfg.OpenEventLog()
		if err != nil {
			return 0, err
		}
		defer logFd.Close()
		events = logger.NewJsonLinesLogRecorder(logFd)
	}

	sh, err := core.NewShell(cfg, proc.OSStdio(), events.NewSession(), appLogger)
	if err != nil {
		return 0, err
	}
	defer sh.Close()
	sh.SetColor(term.IsTerminal(int(os.Stdout.Fd())))

	switch {
	case cmd.Flags().Changed("command"):
		sh.Signals.Start()
		return sh.RunLine(commandLine), nil

	case term.IsTerminal(int(os.Stdin.Fd())):
		if err := sh.EnableReadline(os.Stdin); err != nil {
			return 0, err
		}
		return sh.Run(), nil

	default:
		return sh.RunScript(os.Stdin), nil
	}
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, shellCmd} {
		cmd.Flags().StringVarP(&commandLine, "command", "c", "", "run a single line and exit with its status")
	}

	rootCmd.AddCommand(shellCmd)
}
