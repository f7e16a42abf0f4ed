// Package history keeps the most recent command lines entered at the prompt.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Log is a bounded ring of command lines. When full, each new entry
// overwrites the oldest one.
type Log struct {
	entries []string
	// next is the write cursor, the slot the next entry goes in.
	next int
	full bool

	sink io.WriteCloser
}

// New creates an in-memory log holding up to size entries.
func New(size int) *Log {
	if size < 1 {
		size = 1
	}
	return &Log{entries: make([]string, size)}
}

// Open loads the newest size lines saved at path and appends every future
// entry to the same file, creating it if needed.
func Open(fsys afero.Fs, path string, size int) (*Log, error) {
	log := New(size)

	switch fd, err := fsys.Open(path); {
	case errors.Is(err, fs.ErrNotExist):
		// First run, nothing saved yet.
	case err != nil:
		return nil, err
	default:
		err := log.load(fd)
		fd.Close()
		if err != nil {
			return nil, err
		}
	}

	sink, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	log.sink = sink
	return log, nil
}

func (l *Log) load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			l.add(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	return nil
}

// Close releases the history file, if any.
func (l *Log) Close() error {
	if l.sink == nil {
		return nil
	}
	err := l.sink.Close()
	l.sink = nil
	return err
}

// Size is the maximum number of entries kept.
func (l *Log) Size() int {
	return len(l.entries)
}

// Len is the number of entries currently kept.
func (l *Log) Len() int {
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Add records a line. Trailing newlines are stripped and blank lines are
// ignored. If the log was opened from a file the line is appended there too.
func (l *Log) Add(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	l.add(line)
	if l.sink != nil {
		if _, err := fmt.Fprintln(l.sink, line); err != nil {
			return fmt.Errorf("saving history: %w", err)
		}
	}
	return nil
}

func (l *Log) add(line string) {
	l.entries[l.next] = line
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Entries returns the kept lines, oldest first.
func (l *Log) Entries() []string {
	if !l.full {
		return append([]string(nil), l.entries[:l.next]...)
	}

	out := make([]string, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Clear forgets every in-memory entry. Lines already saved are kept.
func (l *Log) Clear() {
	for i := range l.entries {
		l.entries[i] = ""
	}
	l.next = 0
	l.full = false
}

// WriteTo prints the log with 1-based line numbers.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, line := range l.Entries() {
		n, err := fmt.Fprintf(w, "%5d  %s\n", i+1, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
