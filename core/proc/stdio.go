package proc

import (
	"io"
	"os"
	"reflect"
	"sync"
)

// Stdio holds the standard streams a pipeline inherits from the shell.
//
// The first stage reads Stdin and the last stage writes Stdout unless a pipe
// or redirection takes the slot. A nil stream is connected to the null
// device. Streams that are *os.File are handed to children directly,
// anything else is copied by a goroutine until the process exits. Those
// copies run concurrently, so such writers must be Synchronized.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// OSStdio is the shell's own terminal streams.
func OSStdio() Stdio {
	return Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Detached returns a copy of the streams with Stdin disconnected, used for
// background jobs so they don't compete with the prompt for terminal input.
func (s Stdio) Detached() Stdio {
	s.Stdin = nil
	return s
}

// Synchronized returns a copy of the streams where every writer that isn't
// an *os.File is guarded by a mutex. Stdout and Stderr share one lock when
// they are the same writer. Already synchronized writers are kept as is.
func (s Stdio) Synchronized() Stdio {
	s.Stdout = synchronize(s.Stdout)
	if sameWriter(s.Stderr, s.Stdout) {
		s.Stderr = s.Stdout
	} else if sw, ok := s.Stdout.(*syncWriter); ok && sameWriter(s.Stderr, sw.w) {
		s.Stderr = sw
	} else {
		s.Stderr = synchronize(s.Stderr)
	}
	return s
}

// syncWriter serializes writes from the copy goroutines of several
// processes and the shell itself.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func synchronize(w io.Writer) io.Writer {
	switch w.(type) {
	case nil, *os.File, *syncWriter:
		return w
	default:
		return &syncWriter{w: w}
	}
}

func sameWriter(a, b io.Writer) bool {
	if a == nil || b == nil {
		return false
	}
	if ta, tb := reflect.TypeOf(a), reflect.TypeOf(b); ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// listCloser closes every element, keeping the first error.
type listCloser []io.Closer

func (lc listCloser) Close() error {
	var firstErr error
	for _, c := range lc {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pipe is one inter-stage connection, w feeds stage k and r feeds stage k+1.
type pipe struct {
	r *os.File
	w *os.File
}

// newPipes allocates n pipes. If any allocation fails the ones already
// created are closed.
func newPipes(n int) ([]pipe, error) {
	pipes := make([]pipe, 0, n)
	for i := 0; i < n; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closePipes(pipes)
			return nil, err
		}
		pipes = append(pipes, pipe{r: r, w: w})
	}
	return pipes, nil
}

func closePipes(pipes []pipe) {
	for _, p := range pipes {
		p.r.Close()
		p.w.Close()
	}
}
