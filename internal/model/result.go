package model

import "encoding/json"

// CompletionResult is the terminal summary of one job: the resolved
// content, optional verification metadata from the worker's structured
// artifact, every telemetry event observed, and bounded raw stream
// tails kept for diagnostics.
type CompletionResult struct {
	Content      string          `json:"content"`
	Verification json.RawMessage `json:"verification,omitempty"`
	Events       []LogEvent      `json:"events"`
	ExitCode     int             `json:"exit_code"`
	RawStdout    string          `json:"raw_stdout,omitempty"`
	RawStderr    string          `json:"raw_stderr,omitempty"`
	Status       Status          `json:"status"`
	Diagnostic   string          `json:"diagnostic,omitempty"`
}

// MessageType discriminates frames on a job's live channel.
type MessageType string

const (
	MessageLog      MessageType = "log"
	MessageComplete MessageType = "complete"
	MessageError    MessageType = "error"
)

// Message is one frame on the live channel. A log message carries one
// LogEvent, a complete message the CompletionResult, an error message a
// channel-level failure. Complete and error are always the last frame.
type Message struct {
	Type   MessageType       `json:"type"`
	Event  *LogEvent         `json:"event,omitempty"`
	Result *CompletionResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}
