package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/josephlewis42/minish/core/config"
	"github.com/josephlewis42/minish/core/jobs"
	"github.com/josephlewis42/minish/core/proc"
	"github.com/josephlewis42/minish/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2006, time.January, 2, 15, 4, 5, 0, time.UTC)

type testShell struct {
	*Shell
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestShell(t *testing.T, modify ...func(*config.Configuration)) *testShell {
	t.Helper()

	cfg := config.Default(t.TempDir())
	for _, m := range modify {
		m(cfg)
	}

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	s, err := NewShell(cfg, proc.Stdio{Stdout: stdout, Stderr: stderr}, nil, nil)
	require.NoError(t, err)
	s.Now = func() time.Time { return fixedTime }
	t.Cleanup(func() { s.Close() })

	return &testShell{Shell: s, stdout: stdout, stderr: stderr}
}

func mustStages(t *testing.T, line string) []*shell.Stage {
	t.Helper()
	pl, err := shell.Parse(line)
	require.NoError(t, err)
	return pl.Stages
}

func TestShell_foreground(t *testing.T) {
	s := newTestShell(t)

	assert.Equal(t, 0, s.RunLine("echo hello"))

	out := s.stdout.String()
	assert.True(t, strings.HasPrefix(out, "hello\nCommand Start time: Mon Jan  2 15:04:05 2006\nCommand executed by PID: "), out)
	assert.True(t, strings.HasSuffix(out, "\nExecution time: 0.00 seconds\n"), out)
	assert.Empty(t, s.stderr.String())
}

func TestShell_pipeline(t *testing.T) {
	s := newTestShell(t)
	input := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(input, []byte("apple\nbanana\ncherry\navocado\n"), 0644))

	assert.Equal(t, 0, s.RunLine(fmt.Sprintf("cat %s | grep a | wc -l", input)))

	want := "Piped command started at: Mon Jan  2 15:04:05 2006\nTotal execution time: 0.00 seconds\n"
	assert.Equal(t, "3\n"+want, s.stdout.String())
}

func TestShell_outputRedirect(t *testing.T) {
	s := newTestShell(t)
	out := filepath.Join(t.TempDir(), "out")

	assert.Equal(t, 0, s.RunLine("echo x > "+out))

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(contents))
	assert.True(t, strings.HasPrefix(s.stdout.String(), "Command Start time: "), s.stdout.String())
}

func TestShell_notFound(t *testing.T) {
	s := newTestShell(t)

	assert.Equal(t, proc.StatusNotFound, s.RunLine("minish-no-such-program --flag"))
	assert.Equal(t, "minish: minish-no-such-program: command not found\n", s.stderr.String())
	assert.Empty(t, s.stdout.String())
	assert.Equal(t, proc.StatusNotFound, s.LastStatus())
}

func TestShell_redirectionFailure(t *testing.T) {
	s := newTestShell(t)
	missing := filepath.Join(t.TempDir(), "missing")

	assert.Equal(t, proc.StatusFailure, s.RunLine("cat < "+missing))
	assert.Contains(t, s.stderr.String(), "minish: cat: ")
	assert.Contains(t, s.stderr.String(), "no such file or directory")
}

func TestShell_redirectOrder(t *testing.T) {
	s := newTestShell(t)
	dir := t.TempDir()
	out, missing := filepath.Join(dir, "out"), filepath.Join(dir, "missing")

	assert.Equal(t, proc.StatusFailure, s.RunLine("true > "+out+" < "+missing))
	assert.FileExists(t, out)
	assert.Contains(t, s.stderr.String(), "minish: true: open "+missing+": no such file or directory")
}

func TestShell_builtinRedirectionFailure(t *testing.T) {
	s := newTestShell(t)
	missing := filepath.Join(t.TempDir(), "missing")

	assert.Equal(t, proc.StatusFailure, s.RunLine("history < "+missing))
	assert.Equal(t, "minish: history: open "+missing+": no such file or directory\n", s.stderr.String())
	assert.Empty(t, s.stdout.String(), "builtin ran despite the failed redirection")

	s.stderr.Reset()
	assert.Equal(t, proc.StatusFailure, s.RunLine("cat < "+missing))
	assert.Equal(t, "minish: cat: open "+missing+": no such file or directory\n", s.stderr.String())
}

func TestShell_builtinOutputsCreated(t *testing.T) {
	s := newTestShell(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")

	assert.Equal(t, 0, s.RunLine("help > "+a+" > "+b))

	contents, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Empty(t, contents)

	contents, err = os.ReadFile(b)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "Builtins:")
}

func TestShell_malformed(t *testing.T) {
	cases := []string{"ls |", "| ls", "ls || wc", "cat <", "echo >"}

	for _, line := range cases {
		t.Run(line, func(t *testing.T) {
			s := newTestShell(t)

			assert.Equal(t, StatusUsage, s.RunLine(line))
			assert.True(t, strings.HasPrefix(s.stderr.String(), "minish: "), s.stderr.String())
			assert.Empty(t, s.stdout.String())
		})
	}
}

func TestShell_blankLines(t *testing.T) {
	s := newTestShell(t)

	assert.Equal(t, 0, s.RunLine(""))
	assert.Equal(t, 0, s.RunLine(" \t "))
	assert.Empty(t, s.stdout.String())
	assert.Equal(t, 0, s.History.Len())
}

func TestShell_background(t *testing.T) {
	s := newTestShell(t)
	s.Now = time.Now

	start := time.Now()
	assert.Equal(t, 0, s.RunLine("sleep 1 &"))
	assert.Less(t, int64(time.Since(start)), int64(500*time.Millisecond))

	list := s.Jobs.List()
	require.Len(t, list, 1)
	job := list[0]
	assert.Equal(t, "sleep 1 &", job.Command)
	assert.Equal(t, jobs.Running, job.State)
	assert.WithinDuration(t, time.Now(), job.Started, time.Second)
	assert.Equal(t, fmt.Sprintf("Running in background (PID: %d)\n", job.Pid), s.stdout.String())

	assert.Eventually(t, func() bool {
		return s.Jobs.List()[0].State == jobs.Done
	}, 5*time.Second, 20*time.Millisecond)

	s.stdout.Reset()
	s.flushNotices()
	assert.Equal(t, "[1] Done sleep 1 &\n", s.stdout.String())
	assert.Empty(t, s.Jobs.List())
}

func TestShell_backgroundPipelineRunsInForeground(t *testing.T) {
	s := newTestShell(t)

	assert.Equal(t, 0, s.RunLine("echo hi | cat &"))
	assert.Empty(t, s.Jobs.List())
	assert.True(t, strings.HasPrefix(s.stdout.String(), "hi\nPiped command started at: "), s.stdout.String())
}

func TestShell_jobTableFull(t *testing.T) {
	s := newTestShell(t, func(c *config.Configuration) { c.Jobs.Limit = 1 })

	assert.Equal(t, 0, s.RunLine("sleep 1 &"))
	before := s.Jobs.List()

	assert.Equal(t, proc.StatusFailure, s.RunLine("sleep 1 &"))
	assert.Contains(t, s.stderr.String(), "minish: job table full (limit 1)")
	assert.Equal(t, before, s.Jobs.List())
}

func TestShell_backgroundNotFound(t *testing.T) {
	s := newTestShell(t)

	assert.Equal(t, proc.StatusNotFound, s.RunLine("minish-no-such-program &"))
	assert.Empty(t, s.Jobs.List())
	assert.Contains(t, s.stderr.String(), "command not found")
}

func TestShell_historyRecordedFirst(t *testing.T) {
	s := newTestShell(t)

	s.RunLine("minish-no-such-program")
	s.RunLine("ls |")
	s.RunLine("history")

	assert.Equal(t, []string{"minish-no-such-program", "ls |", "history"}, s.History.Entries())
}

func TestShell_historyFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.History.File = "history"

	s, err := NewShell(cfg, proc.Stdio{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}, nil, nil)
	require.NoError(t, err)
	s.RunLine("history")
	require.NoError(t, s.Close())

	contents, err := os.ReadFile(filepath.Join(dir, "history"))
	require.NoError(t, err)
	assert.Equal(t, "history\n", string(contents))

	s, err = NewShell(cfg, proc.Stdio{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}, nil, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"history"}, s.History.Entries())
}

func TestShell_RunScript(t *testing.T) {
	t.Run("exit status", func(t *testing.T) {
		s := newTestShell(t)

		status := s.RunScript(strings.NewReader("exit 4\necho not reached\n"))
		assert.Equal(t, 4, status)
		assert.True(t, s.Exited())
		assert.Equal(t, "Exiting minish...\n", s.stdout.String())
	})

	t.Run("end of input", func(t *testing.T) {
		s := newTestShell(t)

		status := s.RunScript(strings.NewReader("minish-no-such-program\n"))
		assert.Equal(t, 0, status)
		assert.False(t, s.Exited())
	})
}

func TestShell_survivesInterrupt(t *testing.T) {
	s := newTestShell(t)
	s.Signals.Start()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	assert.Eventually(t, func() bool {
		s.flushNotices()
		return strings.Contains(s.stdout.String(), "Caught {Ctrl+C}, Type 'exit' to quit.\n")
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 0, s.RunLine("true"))
}

// processState reads the one letter run state from /proc/<pid>/stat.
func processState(pid int) (string, error) {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(stat[bytes.LastIndexByte(stat, ')')+1:]))
	if len(fields) == 0 {
		return "", fmt.Errorf("malformed stat for %d", pid)
	}
	return fields[0], nil
}

func TestShell_waitContinuesSuspended(t *testing.T) {
	s := newTestShell(t)
	s.Signals.Start()

	launched, err := s.launcher.Start(mustStages(t, "sleep 1"))
	require.NoError(t, err)
	pid := launched.Pids()[0]

	if _, err := processState(pid); err != nil {
		launched.Signal(syscall.SIGKILL)
		launched.Wait()
		t.Skip("process table not available:", err)
	}

	require.NoError(t, syscall.Kill(pid, syscall.SIGSTOP))
	require.Eventually(t, func() bool {
		state, _ := processState(pid)
		return state == "T"
	}, 5*time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.wait(launched) }()

	// A stopped sleep can only finish once something continues it.
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTSTP))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		launched.Signal(syscall.SIGKILL)
		<-done
		t.Fatal("wait never continued the stopped stage")
	}

	assert.Equal(t, 0, launched.Status())
	assert.Equal(t, "Caught {Ctrl+Z}\n", s.stdout.String())
}

func TestShell_prompt(t *testing.T) {
	s := newTestShell(t, func(c *config.Configuration) { c.Color = config.ColorNever })
	assert.Equal(t, "minish> ", s.Prompt())

	s.Config.Color = config.ColorAlways
	s.SetColor(false)
	assert.Contains(t, s.Prompt(), "\x1b[")
	assert.Contains(t, s.Prompt(), "minish> ")
}
