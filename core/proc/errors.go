package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"syscall"
)

// Exit statuses for stages that never produced one of their own.
const (
	// StatusNotRun marks a stage whose process could not be created.
	StatusNotRun = -1
	// StatusFailure is used when a stage fails before its program runs.
	StatusFailure = 1
	// StatusNotExecutable follows the POSIX shell convention.
	StatusNotExecutable = 126
	// StatusNotFound follows the POSIX shell convention.
	StatusNotFound = 127
)

// FailureKind classifies why a stage didn't run.
type FailureKind int

const (
	// RedirectionFailure means a < or > target couldn't be opened.
	RedirectionFailure FailureKind = iota + 1
	// ProcessCreationFailure means the OS refused to create the process.
	ProcessCreationFailure
	// ImageReplacementFailure means the program couldn't be found or executed.
	ImageReplacementFailure
)

func (k FailureKind) String() string {
	switch k {
	case RedirectionFailure:
		return "redirection"
	case ProcessCreationFailure:
		return "process-creation"
	case ImageReplacementFailure:
		return "exec"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// StageError describes a stage that failed to start. It only ever affects
// the stage it names.
type StageError struct {
	Kind  FailureKind
	Index int
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	switch e.Kind {
	case ImageReplacementFailure:
		if errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist) {
			return fmt.Sprintf("%s: command not found", e.Name)
		}
		return fmt.Sprintf("%s: cannot execute: %v", e.Name, unwrapPathError(e.Err))
	case RedirectionFailure:
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("%s: cannot create process: %v", e.Name, e.Err)
	}
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// classifyStartError sorts an exec.Cmd.Start error into the failure kinds and
// picks the status the stage reports.
func classifyStartError(err error) (FailureKind, int) {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ImageReplacementFailure, StatusNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.ENOEXEC), errors.Is(err, syscall.EISDIR):
		return ImageReplacementFailure, StatusNotExecutable
	default:
		return ProcessCreationFailure, StatusNotRun
	}
}

func unwrapPathError(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

// exitStatus converts the result of exec.Cmd.Wait into a shell status.
// Processes killed by a signal report 128 plus the signal number.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return StatusFailure
}
