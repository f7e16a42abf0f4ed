// Package jobs tracks background jobs started by the shell.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrJobTableFull is returned by Add when the table is at its limit.
var ErrJobTableFull = errors.New("job table full")

// State is the lifecycle of a job.
type State int

const (
	Running State = iota
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Job is a background process the shell didn't wait on.
type Job struct {
	// ID is assigned at insertion and never reused while the table lives.
	ID      int
	Pid     int
	Command string
	Started time.Time

	State      State
	Ended      time.Time
	ExitStatus int
}

// Elapsed is how long the job ran, or has been running as of now.
func (j Job) Elapsed(now time.Time) time.Duration {
	if j.State == Done {
		return j.Ended.Sub(j.Started)
	}
	return now.Sub(j.Started)
}

// Table is the set of background jobs.
//
// The control loop inserts and reaps, while watcher goroutines mark jobs
// done, so every access goes through mu.
type Table struct {
	mu     sync.Mutex
	jobs   []*Job
	limit  int
	nextID int
	now    func() time.Time
}

// NewTable creates a table holding at most limit jobs. A limit below one
// is treated as one.
func NewTable(limit int, timeSource func() time.Time) *Table {
	if limit < 1 {
		limit = 1
	}
	if timeSource == nil {
		timeSource = time.Now
	}
	return &Table{
		limit:  limit,
		nextID: 1,
		now:    timeSource,
	}
}

// Limit is the maximum number of jobs the table holds.
func (t *Table) Limit() int {
	return t.limit
}

// Len is the number of jobs currently tracked, finished or not.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// Full reports whether Add would fail.
func (t *Table) Full() bool {
	return t.Len() >= t.limit
}

// Add records a running job. The command text is copied so the job doesn't
// share memory with the caller's line buffer. Existing entries are never
// touched when the table is full.
func (t *Table) Add(pid int, command string, started time.Time) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.jobs) >= t.limit {
		return Job{}, fmt.Errorf("%w (limit %d)", ErrJobTableFull, t.limit)
	}

	job := &Job{
		ID:      t.nextID,
		Pid:     pid,
		Command: strings.Clone(command),
		Started: started,
		State:   Running,
	}
	t.nextID++
	t.jobs = append(t.jobs, job)
	return *job, nil
}

// Watch starts a goroutine that calls wait and marks the job done with the
// status it returns.
func (t *Table) Watch(id int, wait func() int) {
	go func() {
		status := wait()
		t.Finish(id, status)
	}()
}

// Finish marks a job done. Unknown IDs are ignored.
func (t *Table) Finish(id, status int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, job := range t.jobs {
		if job.ID == id {
			job.State = Done
			job.Ended = t.now()
			job.ExitStatus = status
			return
		}
	}
}

// List returns a snapshot of the jobs in insertion order.
func (t *Table) List() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, *job)
	}
	return out
}

// Reap removes finished jobs and returns them in insertion order.
func (t *Table) Reap() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	var reaped []Job
	kept := t.jobs[:0]
	for _, job := range t.jobs {
		if job.State == Done {
			reaped = append(reaped, *job)
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(t.jobs); i++ {
		t.jobs[i] = nil
	}
	t.jobs = kept
	return reaped
}

// Now is the table's clock.
func (t *Table) Now() time.Time {
	return t.now()
}
