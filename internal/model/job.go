package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is a job lifecycle state. Transitions are monotonic,
// Pending -> Running -> {Completed | Failed}, and a terminal state is
// assigned exactly once.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions or events may follow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one execution of the worker process plus its telemetry and
// result lifecycle. A Job and its stream machinery are exclusively
// owned by a single controller, no two jobs share mutable state.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Section    string    `json:"section"`
	Collection string    `json:"collection,omitempty"`
	Command    string    `json:"command"`
	Args       []string  `json:"args,omitempty"`
	Workspace  string    `json:"workspace,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
