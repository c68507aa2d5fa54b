package models

import "time"

type EventKind int

const (
	EventStarted EventKind = iota
	EventOutput
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventOutput:
		return "output"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureNotFound       FailureKind = "not_found"
	FailureSpawnFailed    FailureKind = "spawn_failed"
	FailureAlreadyRunning FailureKind = "already_running"
	FailureIO             FailureKind = "io_failed"
	FailureInvalidSource  FailureKind = "invalid_source"
)

// RunEvent is one step of a run as seen by the caller. Started, Output and
// the terminal Completed/Failed events all carry the RunID they belong to.
type RunEvent struct {
	RunID     string
	Kind      EventKind
	Stream    Stream     // EventOutput
	Data      []byte     // EventOutput
	PID       int        // EventStarted
	StartedAt time.Time  // EventStarted
	Result    *RunResult // EventCompleted
	Failure   FailureKind
	Err       error // EventFailed
}

func (e RunEvent) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed
}
