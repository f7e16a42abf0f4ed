package proc

import (
	"os"

	"github.com/josephlewis42/minish/core/shell"
)

// Redirected holds the files a stage's redirections opened. Stdin and
// Stdout are the targets that take effect, nil when the stage has none.
type Redirected struct {
	Stdin  *os.File
	Stdout *os.File

	files listCloser
}

// OpenRedirections opens every redirection target of stage in the order
// written. Every > target is created or truncated even when a later one
// replaces it. On the first failure the files opened so far are closed
// and a *StageError is returned.
func OpenRedirections(index int, stage *shell.Stage) (*Redirected, error) {
	out := &Redirected{}
	for _, r := range stage.Redirections() {
		var (
			fd  *os.File
			err error
		)
		if r.Op == shell.RedirectIn {
			fd, err = os.Open(r.Path)
		} else {
			fd, err = os.OpenFile(r.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		}
		if err != nil {
			out.Close()
			return nil, &StageError{Kind: RedirectionFailure, Index: index, Name: stage.Name(), Err: err}
		}

		out.files = append(out.files, fd)
		if r.Op == shell.RedirectIn {
			out.Stdin = fd
		} else {
			out.Stdout = fd
		}
	}
	return out, nil
}

// Close releases every opened file. The process or builtin using them must
// have started or finished first.
func (r *Redirected) Close() error {
	err := r.files.Close()
	r.files = nil
	return err
}
