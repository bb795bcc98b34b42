package domain

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a run, job instance, or step.
type Status string

const (
	// StatusPending indicates the unit is waiting for dependencies or scheduling.
	StatusPending Status = "pending"
	// StatusRunning indicates the unit is currently executing.
	StatusRunning Status = "running"
	// StatusSucceeded indicates the unit finished successfully.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the unit execution failed.
	StatusFailed Status = "failed"
	// StatusSkipped indicates the unit did not run, either because its
	// condition evaluated false or because an upstream failure cut it off.
	StatusSkipped Status = "skipped"
)

// IsTerminal checks if a status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// NormalizeStatus converts a string to a Status, defaulting to pending if unknown.
func NormalizeStatus(s string) Status {
	switch strings.ToLower(s) {
	case string(StatusPending):
		return StatusPending
	case string(StatusRunning):
		return StatusRunning
	case string(StatusSucceeded):
		return StatusSucceeded
	case string(StatusFailed):
		return StatusFailed
	case string(StatusSkipped):
		return StatusSkipped
	default:
		return StatusPending
	}
}

// StepResult captures the outcome of a single executed step.
type StepResult struct {
	Name       string            `json:"name"`
	ID         string            `json:"id,omitzero"`
	Conclusion Status            `json:"conclusion"`
	Outputs    map[string]string `json:"outputs,omitzero"`
	Duration   time.Duration     `json:"duration_ns,omitzero"`
	Err        string            `json:"error,omitzero"`
}

// JobResult captures the outcome of one job instance.
type JobResult struct {
	Instance   string        `json:"instance"`
	JobID      string        `json:"job"`
	Conclusion Status        `json:"conclusion"`
	Steps      []StepResult  `json:"steps,omitzero"`
	Duration   time.Duration `json:"duration_ns,omitzero"`
}

// RunResult captures the outcome of executing one triggered workflow.
type RunResult struct {
	Workflow   string        `json:"workflow"`
	SHA        string        `json:"sha,omitzero"`
	Conclusion Status        `json:"conclusion"`
	Jobs       []JobResult   `json:"jobs,omitzero"`
	StartedAt  time.Time     `json:"started_at,omitzero"`
	Duration   time.Duration `json:"duration_ns,omitzero"`
}

// Failed reports whether any job in the run failed.
func (r *RunResult) Failed() bool {
	for _, j := range r.Jobs {
		if j.Conclusion == StatusFailed {
			return true
		}
	}
	return false
}

// LogLevel represents the severity of a log message, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
