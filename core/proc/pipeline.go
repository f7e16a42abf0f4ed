package proc

import (
	"errors"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pipeline is a set of launched stages.
type Pipeline struct {
	Processes []*Process
	// Started is stamped before the first stage is created.
	Started time.Time
	// Finished is stamped once Wait has collected every stage.
	Finished time.Time

	pipes []pipe
	now   func() time.Time
}

// Pipes is the number of inter-stage pipes that were allocated.
func (p *Pipeline) Pipes() int {
	return len(p.pipes)
}

// Pids lists the identities of the stages that started, in stage order.
func (p *Pipeline) Pids() []int {
	var out []int
	for _, proc := range p.Processes {
		if proc.Started() {
			out = append(out, proc.Pid)
		}
	}
	return out
}

// Errors lists the launch failures, in stage order.
func (p *Pipeline) Errors() []error {
	var out []error
	for _, proc := range p.Processes {
		if proc.Err != nil {
			out = append(out, proc.Err)
		}
	}
	return out
}

// Wait blocks until every started stage exits and records each status.
// Stages may finish in any order. The returned error is only set if
// collecting a status failed for a reason other than a non-zero exit.
func (p *Pipeline) Wait() error {
	var g errgroup.Group
	for _, proc := range p.Processes {
		proc := proc
		if !proc.Started() {
			continue
		}

		g.Go(func() error {
			err := proc.cmd.Wait()
			proc.Status = exitStatus(err)

			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	p.Finished = p.now()
	return err
}

// Status is the exit status of the final stage, as in POSIX shells.
func (p *Pipeline) Status() int {
	if len(p.Processes) == 0 {
		return StatusNotRun
	}
	return p.Processes[len(p.Processes)-1].Status
}

// Elapsed is the wall-clock time between launch and the last exit.
func (p *Pipeline) Elapsed() time.Duration {
	if p.Finished.IsZero() {
		return p.now().Sub(p.Started)
	}
	return p.Finished.Sub(p.Started)
}

// Signal sends sig to every stage that started. Stages that already exited
// are skipped by the os package.
func (p *Pipeline) Signal(sig os.Signal) {
	for _, proc := range p.Processes {
		if proc.Started() {
			_ = proc.cmd.Process.Signal(sig)
		}
	}
}
