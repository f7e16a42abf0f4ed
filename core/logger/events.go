package logger

// LogEntry is a single event in the log. Exactly one of the event fields is
// set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	RunCommand    *RunCommand    `json:"run_command,omitempty"`
	CommandFailed *CommandFailed `json:"command_failed,omitempty"`
	JobStarted    *JobStarted    `json:"job_started,omitempty"`
	JobFinished   *JobFinished   `json:"job_finished,omitempty"`
	Signal        *Signal        `json:"signal,omitempty"`
}

// GetLogType returns the event held by the entry, or nil if there is none.
func (le *LogEntry) GetLogType() LogType {
	switch {
	case le.RunCommand != nil:
		return le.RunCommand
	case le.CommandFailed != nil:
		return le.CommandFailed
	case le.JobStarted != nil:
		return le.JobStarted
	case le.JobFinished != nil:
		return le.JobFinished
	case le.Signal != nil:
		return le.Signal
	default:
		return nil
	}
}

// LogType is implemented by every event that can be recorded.
type LogType interface {
	attach(le *LogEntry)
}

// RunCommand is logged after a foreground line finishes.
type RunCommand struct {
	Line          string   `json:"line"`
	Commands      []string `json:"commands"`
	Pids          []int    `json:"pids,omitempty"`
	Status        int      `json:"status"`
	ElapsedMicros int64    `json:"elapsed_micros"`
	Builtin       bool     `json:"builtin,omitempty"`
}

func (e *RunCommand) attach(le *LogEntry) { le.RunCommand = e }

// CommandFailed is logged when a stage can't be started.
type CommandFailed struct {
	Line    string `json:"line"`
	Stage   int    `json:"stage"`
	Command string `json:"command"`
	Kind    string `json:"kind"`
	Status  int    `json:"status"`
	Error   string `json:"error"`
}

func (e *CommandFailed) attach(le *LogEntry) { le.CommandFailed = e }

type JobStarted struct {
	JobID   int    `json:"job_id"`
	Pid     int    `json:"pid"`
	Command string `json:"command"`
}

func (e *JobStarted) attach(le *LogEntry) { le.JobStarted = e }

type JobFinished struct {
	JobID         int    `json:"job_id"`
	Pid           int    `json:"pid"`
	Command       string `json:"command"`
	ExitStatus    int    `json:"exit_status"`
	ElapsedMicros int64  `json:"elapsed_micros"`
}

func (e *JobFinished) attach(le *LogEntry) { le.JobFinished = e }

// Signal is logged when a keyboard signal reaches the shell.
type Signal struct {
	Name string `json:"name"`
}

func (e *Signal) attach(le *LogEntry) { le.Signal = e }
