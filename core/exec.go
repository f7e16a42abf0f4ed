package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/josephlewis42/minish/core/jobs"
	"github.com/josephlewis42/minish/core/logger"
	"github.com/josephlewis42/minish/core/proc"
	"github.com/josephlewis42/minish/core/shell"
	"github.com/josephlewis42/minish/core/signals"
	"golang.org/x/sys/unix"
)

// runForeground launches the pipeline and blocks until every stage exits.
func (s *Shell) runForeground(pipeline *shell.Pipeline) int {
	launched, err := s.launcher.Start(pipeline.Stages)
	if err != nil {
		s.errorf("%v", err)
		return proc.StatusFailure
	}
	s.reportFailures(pipeline, launched)

	if len(launched.Pids()) == 0 {
		return launched.Status()
	}

	if err := s.wait(launched); err != nil {
		s.Log.Printf("Error waiting for %q: %v", pipeline.Text, err)
	}

	w := s.Stdio.Stdout
	if len(launched.Processes) == 1 {
		fmt.Fprintf(w, "Command Start time: %s\n", launched.Started.Format(time.ANSIC))
		fmt.Fprintf(w, "Command executed by PID: %d\n", launched.Processes[0].Pid)
		fmt.Fprintf(w, "Execution time: %.2f seconds\n", launched.Elapsed().Seconds())
	} else {
		fmt.Fprintf(w, "Piped command started at: %s\n", launched.Started.Format(time.ANSIC))
		fmt.Fprintf(w, "Total execution time: %.2f seconds\n", launched.Elapsed().Seconds())
	}

	s.record(&logger.RunCommand{
		Line:          pipeline.Text,
		Commands:      stageNames(pipeline),
		Pids:          launched.Pids(),
		Status:        launched.Status(),
		ElapsedMicros: launched.Elapsed().Microseconds(),
	})

	return launched.Status()
}

// wait blocks on the pipeline while still handling signal events. Stages
// stopped by a suspend are continued so the wait can finish.
func (s *Shell) wait(launched *proc.Pipeline) error {
	done := make(chan error, 1)
	go func() {
		done <- launched.Wait()
	}()

	for {
		select {
		case err := <-done:
			return err
		case event := <-s.Signals.Events():
			s.notice(event)
			if event == signals.Suspend {
				launched.Signal(unix.SIGCONT)
			}
		}
	}
}

// launchBackground starts a single stage without waiting for it and tracks
// it in the job table. The job's stdin is detached from the terminal.
func (s *Shell) launchBackground(pipeline *shell.Pipeline) int {
	if s.Jobs.Full() {
		s.errorf("%v (limit %d)", jobs.ErrJobTableFull, s.Jobs.Limit())
		return proc.StatusFailure
	}

	launcher := *s.launcher
	launcher.Stdio = s.Stdio.Detached()
	launched, err := launcher.Start(pipeline.Stages)
	if err != nil {
		s.errorf("%v", err)
		return proc.StatusFailure
	}
	s.reportFailures(pipeline, launched)

	pids := launched.Pids()
	if len(pids) == 0 {
		return launched.Status()
	}

	job, err := s.Jobs.Add(pids[0], pipeline.Text, launched.Started)
	if err != nil {
		// Still collect the process so it doesn't linger as a zombie.
		s.errorf("%v", err)
		go launched.Wait()
		return proc.StatusFailure
	}

	s.Jobs.Watch(job.ID, func() int {
		if err := launched.Wait(); err != nil {
			s.Log.Printf("Error waiting for job %d: %v", job.ID, err)
		}

		status := launched.Status()
		s.record(&logger.JobFinished{
			JobID:         job.ID,
			Pid:           job.Pid,
			Command:       job.Command,
			ExitStatus:    status,
			ElapsedMicros: launched.Elapsed().Microseconds(),
		})
		return status
	})

	fmt.Fprintf(s.Stdio.Stdout, "Running in background (PID: %d)\n", job.Pid)
	s.record(&logger.JobStarted{JobID: job.ID, Pid: job.Pid, Command: job.Command})
	return 0
}

// reportFailures prints a diagnostic for every stage that didn't start.
func (s *Shell) reportFailures(pipeline *shell.Pipeline, launched *proc.Pipeline) {
	for _, err := range launched.Errors() {
		s.errorf("%v", err)

		var stageErr *proc.StageError
		if errors.As(err, &stageErr) {
			s.record(&logger.CommandFailed{
				Line:    pipeline.Text,
				Stage:   stageErr.Index,
				Command: stageErr.Name,
				Kind:    stageErr.Kind.String(),
				Status:  launched.Processes[stageErr.Index].Status,
				Error:   stageErr.Error(),
			})
		}
	}
}

func stageNames(pipeline *shell.Pipeline) []string {
	out := make([]string, 0, len(pipeline.Stages))
	for _, stage := range pipeline.Stages {
		out = append(out, stage.Name())
	}
	return out
}
