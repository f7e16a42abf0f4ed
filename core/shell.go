package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/minish/core/config"
	"github.com/josephlewis42/minish/core/history"
	"github.com/josephlewis42/minish/core/jobs"
	"github.com/josephlewis42/minish/core/logger"
	"github.com/josephlewis42/minish/core/proc"
	"github.com/josephlewis42/minish/core/shell"
	"github.com/josephlewis42/minish/core/signals"
)

const (
	ShellName = "minish"

	// StatusUsage is returned for lines that can't be parsed.
	StatusUsage = 2
)

// Shell holds the state of one interpreter session: its jobs, history and
// signal subscription. All of its methods must be called from the goroutine
// running the prompt loop.
type Shell struct {
	Config   *config.Configuration
	Readline *readline.Instance
	Jobs     *jobs.Table
	History  *history.Log
	Signals  *signals.Broker
	Events   *logger.SessionLogger
	Stdio    proc.Stdio
	Log      *log.Logger

	// Now is the clock used for timing reports.
	Now func() time.Time

	launcher   *proc.Launcher
	builtinOut io.Writer
	lastStatus int
	exitStatus int
	quit       bool

	promptColor *color.Color
	errColor    *color.Color
}

// NewShell creates a shell reading its settings from configuration. The
// history file, if configured, is opened on the configuration's filesystem.
func NewShell(configuration *config.Configuration, stdio proc.Stdio, events *logger.SessionLogger, appLog *log.Logger) (*Shell, error) {
	var hist *history.Log
	if file := configuration.History.File; file != "" {
		var err error
		hist, err = history.Open(configuration.Fs(), file, configuration.History.Size)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
	} else {
		hist = history.New(configuration.History.Size)
	}

	if events == nil {
		events = logger.NewNopLogger().Sessionless()
	}
	if appLog == nil {
		appLog = log.New(io.Discard, "", 0)
	}
	// Notices and job output can be written at the same time.
	stdio = stdio.Synchronized()

	s := &Shell{
		Config:  configuration,
		History: hist,
		Signals: signals.NewBroker(),
		Events:  events,
		Stdio:   stdio,
		Log:     appLog,
		Now:     time.Now,

		promptColor: color.New(color.FgGreen, color.Bold),
		errColor:    color.New(color.FgRed),
	}
	s.Jobs = jobs.NewTable(configuration.Jobs.Limit, s.now)
	s.launcher = &proc.Launcher{Stdio: stdio, Now: s.now}
	s.SetColor(false)

	return s, nil
}

func (s *Shell) now() time.Time {
	return s.Now()
}

// SetColor enables colored output if the configuration allows it for a
// terminal (isTTY) or other output.
func (s *Shell) SetColor(isTTY bool) {
	if s.Config.ShouldColor(isTTY) {
		s.promptColor.EnableColor()
		s.errColor.EnableColor()
	} else {
		s.promptColor.DisableColor()
		s.errColor.DisableColor()
	}
}

// EnableReadline reads lines from the terminal using readline.
func (s *Shell) EnableReadline(stdin io.Reader) error {
	cfg := &readline.Config{
		Prompt: s.Prompt(),
		Stdin:  readline.NewCancelableStdin(stdin),
		Stdout: s.Stdio.Stdout,
		Stderr: s.Stdio.Stderr,

		// History is owned by the shell.
		DisableAutoSaveHistory: true,
		HistoryLimit:           s.Config.History.Size,
	}

	if err := cfg.Init(); err != nil {
		return err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return err
	}

	for _, line := range s.History.Entries() {
		_ = rl.SaveHistory(line)
	}

	s.Readline = rl
	return nil
}

// Prompt is the text shown before each line of input.
func (s *Shell) Prompt() string {
	return s.promptColor.Sprint(s.Config.Prompt)
}

// Run reads lines with readline until exit or end of input and returns the
// shell's exit status.
func (s *Shell) Run() int {
	s.Signals.Start()

	for !s.quit {
		s.flushNotices()

		s.Readline.SetPrompt(s.Prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return 0 // Input closed, quit.

		case err == readline.ErrInterrupt:
			// The terminal is in raw mode while reading so ^C arrives as a key.
			s.notice(signals.Interrupt)

		case err != nil:
			s.Log.Printf("Error readline: %v", err)
			return proc.StatusFailure

		default:
			if strings.TrimSpace(line) != "" {
				_ = s.Readline.SaveHistory(line)
			}
			s.RunLine(line)
		}
	}

	return s.exitStatus
}

// RunScript runs every line of r, for input that isn't a terminal. It
// returns the shell's exit status.
func (s *Shell) RunScript(r io.Reader) int {
	s.Signals.Start()

	scanner := bufio.NewScanner(r)
	for !s.quit && scanner.Scan() {
		s.flushNotices()
		s.RunLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		s.Log.Printf("Error reading input: %v", err)
		return proc.StatusFailure
	}

	if s.quit {
		return s.exitStatus
	}
	return 0
}

// RunLine executes a single line and returns its status. Blank lines do
// nothing and return the previous status.
func (s *Shell) RunLine(line string) int {
	if err := s.History.Add(line); err != nil {
		s.Log.Printf("%v", err)
	}

	pipeline, err := shell.Parse(line)
	switch {
	case errors.Is(err, shell.ErrEmptyLine):
		return s.lastStatus
	case err != nil:
		s.errorf("%v", err)
		s.lastStatus = StatusUsage
		return s.lastStatus
	}

	switch {
	case s.isBuiltin(pipeline):
		s.lastStatus = s.runBuiltin(pipeline)
	case pipeline.Background():
		s.lastStatus = s.launchBackground(pipeline)
	default:
		s.lastStatus = s.runForeground(pipeline)
	}

	return s.lastStatus
}

// LastStatus is the status of the most recent line.
func (s *Shell) LastStatus() int {
	return s.lastStatus
}

// Exited reports whether the exit builtin has run.
func (s *Shell) Exited() bool {
	return s.quit
}

// Stdout is where builtins write their output.
func (s *Shell) Stdout() io.Writer {
	if s.builtinOut != nil {
		return s.builtinOut
	}
	return s.Stdio.Stdout
}

// Stderr is where diagnostics are written.
func (s *Shell) Stderr() io.Writer {
	return s.Stdio.Stderr
}

func (s *Shell) errorf(format string, args ...interface{}) {
	fmt.Fprintf(s.Stderr(), "%s%s\n", s.errColor.Sprint(ShellName+": "), fmt.Sprintf(format, args...))
}

// flushNotices prints signals observed since the last call and the jobs
// that finished.
func (s *Shell) flushNotices() {
	for _, event := range s.Signals.Drain() {
		s.notice(event)
	}

	for _, job := range s.Jobs.Reap() {
		fmt.Fprintf(s.Stdio.Stdout, "[%d] Done %s\n", job.ID, job.Command)
	}
}

func (s *Shell) notice(event signals.Event) {
	fmt.Fprintln(s.Stdio.Stdout, event.Notice())
	s.record(&logger.Signal{Name: event.String()})
}

func (s *Shell) record(event logger.LogType) {
	if err := s.Events.Record(event); err != nil {
		s.Log.Printf("Error recording event: %v", err)
	}
}

// Close stops signal interception and releases the history file and
// terminal.
func (s *Shell) Close() error {
	s.Signals.Stop()

	var lastErr error
	if s.Readline != nil {
		if err := s.Readline.Close(); err != nil {
			lastErr = err
		}
	}
	if err := s.History.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}
