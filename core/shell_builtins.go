package core

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/josephlewis42/minish/core/jobs"
	"github.com/josephlewis42/minish/core/logger"
	"github.com/josephlewis42/minish/core/proc"
	"github.com/josephlewis42/minish/core/shell"
	"github.com/pborman/getopt/v2"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// BuiltinNames lists the registered builtins, sorted.
func BuiltinNames() []string {
	var names []string
	for k := range AllBuiltins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// isBuiltin reports whether the line is a single builtin invocation. In a
// pipeline the name is looked up on PATH like any other program.
func (s *Shell) isBuiltin(pipeline *shell.Pipeline) bool {
	if len(pipeline.Stages) != 1 {
		return false
	}
	_, ok := AllBuiltins[pipeline.Stages[0].Name()]
	return ok
}

// runBuiltin runs a builtin in the shell's own process. Redirections are
// opened the same way as for a program; builtins never read stdin.
func (s *Shell) runBuiltin(pipeline *shell.Pipeline) int {
	stage := pipeline.Stages[0]

	redirected, err := proc.OpenRedirections(0, stage)
	if err != nil {
		s.errorf("%v", err)
		s.record(&logger.CommandFailed{
			Line:    pipeline.Text,
			Command: stage.Name(),
			Kind:    proc.RedirectionFailure.String(),
			Status:  proc.StatusFailure,
			Error:   err.Error(),
		})
		return proc.StatusFailure
	}
	defer redirected.Close()

	if redirected.Stdout != nil {
		s.builtinOut = redirected.Stdout
		defer func() { s.builtinOut = nil }()
	}

	status := AllBuiltins[stage.Name()].Main(s, stage.Args)
	s.record(&logger.RunCommand{
		Line:     pipeline.Text,
		Commands: []string{stage.Name()},
		Status:   status,
		Builtin:  true,
	})
	return status
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	switch len(args) {
	case 1:
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
			return 1
		}
		args = append(args, home)
		fallthrough
	case 2:
		if err := os.Chdir(args[1]); err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
			return 1
		}
	default:
		fmt.Fprintf(s.Stderr(), "%s: too many arguments\n", args[0])
		return 1
	}
	return 0
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	status := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %s: numeric argument required\n", args[0], args[1])
			return StatusUsage
		}
		status = n
	}

	fmt.Fprintf(s.Stdout(), "Exiting %s...\n", ShellName)
	s.quit = true
	s.exitStatus = status
	return status
}

func History(s *Shell, args []string) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.Stderr()
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "usage: history [-c]")
		fmt.Fprintln(w, "Display the history list with line numbers.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	if *clear {
		if s.Readline != nil {
			s.Readline.Operation.ResetHistory()
		}
		s.History.Clear()
		return 0
	}

	if _, err := s.History.WriteTo(s.Stdout()); err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func Jobs(s *Shell, args []string) int {
	opts := getopt.New()
	long := opts.Bool('l', "show state, exit status and run time")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.Stderr()
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "usage: jobs [-l]")
		fmt.Fprintln(w, "Display the background jobs started by this shell.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	w := s.Stdout()
	list := s.Jobs.List()

	if *long {
		now := s.Jobs.Now()
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Job", "PID", "State", "Status", "Runtime", "Command"})
		for _, job := range list {
			status := "-"
			if job.State == jobs.Done {
				status = strconv.Itoa(job.ExitStatus)
			}
			runtime := job.Elapsed(now).Round(time.Millisecond)
			t.AppendRow(table.Row{job.ID, job.Pid, job.State, status, runtime, job.Command})
		}
		t.Render()
		return 0
	}

	fmt.Fprintln(w, "Background Jobs:")
	for _, job := range list {
		fmt.Fprintf(w, "[%d] PID: %d - %s\n (Started at: %s)\n", job.ID, job.Pid, job.Command, job.Started.Format(time.ANSIC))
	}
	return 0
}

func Help(s *Shell, args []string) int {
	w := s.Stdout()
	fmt.Fprintf(w, "%s, a minimal pipeline shell\n", ShellName)
	fmt.Fprintln(w, "These shell commands are defined internally.  Type `help' to see this list.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Syntax:")
	fmt.Fprintln(w, "  cmd [args...] [< file] [> file] [| cmd ...] [&]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	for _, name := range BuiltinNames() {
		fmt.Fprintf(w, "  %s\n", name)
	}

	return 0
}

func init() {
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["help"] = ShellBuiltinFunc(Help)
	AllBuiltins["history"] = ShellBuiltinFunc(History)
	AllBuiltins["jobs"] = ShellBuiltinFunc(Jobs)
}
