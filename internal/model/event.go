package model

import "time"

// EventKind classifies one unit of worker telemetry.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventWarning  EventKind = "warning"
	EventError    EventKind = "error"
)

// StreamOrigin names the physical stream an event was read from.
// Ordering is guaranteed only within a single origin, the interleaving
// of stdout and stderr events is non-deterministic.
type StreamOrigin string

const (
	OriginStdout StreamOrigin = "stdout"
	OriginStderr StreamOrigin = "stderr"
)

// LogEvent is a structured, classified unit of diagnostic telemetry
// extracted from one tagged worker output line.
type LogEvent struct {
	Kind      EventKind    `json:"kind"`
	Message   string       `json:"message"`
	Origin    StreamOrigin `json:"origin"`
	EmittedAt time.Time    `json:"emitted_at"`
}
