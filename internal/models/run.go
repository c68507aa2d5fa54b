package models

import "time"

const (
	// ExitCancelled is reported by runs that ended through cancellation.
	ExitCancelled = -1
	// ExitFailed is reported to the user for runs that never produced a result.
	ExitFailed = -2
)

type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunResult struct {
	RunID      string
	ExitCode   int
	Stdout     string
	Stderr     string
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	Truncated  bool // accumulated output hit the size cap
}

func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type RunState struct {
	Status  RunStatus
	RunID   string
	PID     int
	Result  *RunResult
	Failure FailureKind
	Message string
}

// RunRecord is the history entry kept for every finished or failed run.
type RunRecord struct {
	RunID      string
	Profile    string
	Source     string // script path, or "<inline>"
	Status     RunStatus
	ExitCode   int
	Failure    FailureKind
	Message    string
	OutputSize int
	StartedAt  time.Time
	FinishedAt time.Time
}
