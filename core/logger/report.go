package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`
	Sessions       StrCounter `json:"sessions"`

	RunCommand    RunCommandReport    `json:"run_command_report"`
	CommandFailed CommandFailedReport `json:"command_failed_report"`
	Jobs          JobReport           `json:"job_report"`
	Signals       StrCounter          `json:"signal_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	if le.SessionID != "" {
		r.Sessions.Increment(le.SessionID)
	}

	switch event := le.GetLogType().(type) {
	case *RunCommand:
		r.RunCommand.update(event)
	case *CommandFailed:
		r.CommandFailed.update(event)
	case *JobStarted:
		r.Jobs.Started++
		r.Jobs.CommandNames.Increment(firstWord(event.Command))
	case *JobFinished:
		r.Jobs.Finished++
		r.Jobs.ExitStatuses.Increment(strconv.Itoa(event.ExitStatus))
	case *Signal:
		r.Signals.Increment(event.Name)
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%T", event))
	}
}

type RunCommandReport struct {
	// Number of lines run in the foreground.
	Count int `json:"count"`
	// Name of the first command of each stage.
	CommandNames StrCounter `json:"command_names"`
	// Exit statuses of the lines.
	Statuses StrCounter `json:"statuses"`
	// Number of stages in each line.
	PipelineLengths StrCounter `json:"pipeline_lengths"`
}

func (r *RunCommandReport) update(rc *RunCommand) {
	r.Count++
	for _, cmd := range rc.Commands {
		r.CommandNames.Increment(cmd)
	}
	r.Statuses.Increment(strconv.Itoa(rc.Status))
	r.PipelineLengths.Increment(strconv.Itoa(len(rc.Commands)))
}

type CommandFailedReport struct {
	Failures *PathCounter `json:"failures"`
}

func (r *CommandFailedReport) update(cf *CommandFailed) {
	if r.Failures == nil {
		r.Failures = NewPathCounter("command", "kind")
	}
	r.Failures.Increment(cf.Command, cf.Kind)
}

type JobReport struct {
	Started      int        `json:"started"`
	Finished     int        `json:"finished"`
	CommandNames StrCounter `json:"command_names"`
	ExitStatuses StrCounter `json:"exit_statuses"`
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' {
			return s[:i]
		}
	}
	return s
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of strings seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
