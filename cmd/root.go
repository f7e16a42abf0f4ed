package cmd

import (
	"errors"
	"io/fs"

	"github.com/josephlewis42/minish/core/config"
	"github.com/spf13/cobra"
)

var cfgPath string

// loadConfig reads the configuration, falling back to the built-in one if
// init hasn't been run.
func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(cfgPath), nil
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "minish",
	Short: "A minimal pipeline shell",
	Long: `A small interactive shell that runs commands, pipelines and
redirections as real processes, with background jobs and history.`,
	Args: cobra.ExactArgs(0),
	RunE: shellCmd.RunE,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
}
