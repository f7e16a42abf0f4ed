// Package proc creates and waits on the OS processes for a pipeline.
package proc

import (
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/josephlewis42/minish/core/shell"
)

// Process is one stage of a launched pipeline.
type Process struct {
	// Index is the stage's position in the pipeline.
	Index int
	Stage *shell.Stage
	// Pid is zero if the stage never started.
	Pid int
	// Status is the stage's exit status, filled in by Pipeline.Wait or at
	// launch if the stage failed to start.
	Status int
	// Err is a *StageError if the stage failed to start.
	Err error

	cmd *exec.Cmd
}

// Started reports whether an OS process exists for the stage.
func (p *Process) Started() bool {
	return p.cmd != nil
}

// Launcher starts pipeline stages as OS processes.
type Launcher struct {
	Stdio Stdio
	// Dir is the working directory for new processes, empty means the
	// shell's own.
	Dir string
	// Env is the environment for new processes, nil means the shell's own.
	Env []string
	// Now is the clock used to stamp pipelines, time.Now if nil.
	Now func() time.Time
}

func (l *Launcher) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Start launches every stage, connecting stage i's stdout to stage i+1's
// stdin with a pipe. Stages that fail to start are recorded in their
// Process and skipped; the others still run.
//
// On return the caller holds no end of any inter-stage pipe: each end lives
// only in the child that uses it.
func (l *Launcher) Start(stages []*shell.Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: no stages", shell.ErrMalformedPipeline)
	}

	pipes, err := newPipes(len(stages) - 1)
	if err != nil {
		return nil, fmt.Errorf("creating pipes: %w", err)
	}
	// Children got their own copies during Start.
	defer closePipes(pipes)

	// Every stage shares the same locks on non-file writers.
	stdio := l.Stdio.Synchronized()

	out := &Pipeline{
		Started: l.now(),
		pipes:   pipes,
		now:     l.now,
	}
	for i, stage := range stages {
		var stdin io.Reader = stdio.Stdin
		var stdout io.Writer = stdio.Stdout
		if i > 0 {
			stdin = pipes[i-1].r
		}
		if i < len(stages)-1 {
			stdout = pipes[i].w
		}

		proc := &Process{Index: i, Stage: stage, Status: StatusNotRun}
		if err := l.start(proc, stdin, stdout, stdio.Stderr); err != nil {
			proc.Err = err
		}
		out.Processes = append(out.Processes, proc)
	}

	return out, nil
}

// start runs a single stage. Redirections are applied after the pipe
// connection so they win for the slot they name.
func (l *Launcher) start(p *Process, stdin io.Reader, stdout, stderr io.Writer) error {
	redirected, err := OpenRedirections(p.Index, p.Stage)
	if err != nil {
		p.Status = StatusFailure
		return err
	}
	defer redirected.Close()

	if redirected.Stdin != nil {
		stdin = redirected.Stdin
	}
	if redirected.Stdout != nil {
		stdout = redirected.Stdout
	}

	cmd := exec.Command(p.Stage.Args[0], p.Stage.Args[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Dir = l.Dir
	cmd.Env = l.Env

	if err := cmd.Start(); err != nil {
		kind, status := classifyStartError(err)
		p.Status = status
		return &StageError{Kind: kind, Index: p.Index, Name: p.Stage.Name(), Err: err}
	}

	p.cmd = cmd
	p.Pid = cmd.Process.Pid
	return nil
}
