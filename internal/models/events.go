package models

import "time"

// StreamKind identifies which child stream produced an output chunk.
type StreamKind string

const (
	StreamStdout StreamKind = "stdout"
	StreamStderr StreamKind = "stderr"
)

// ProcessStartedEvent is published when a scraper process has been spawned.
type ProcessStartedEvent struct {
	ProcessID  string `json:"process_id"`
	PlatformID string `json:"platform_id"`
}

// ProcessOutputEvent carries one raw chunk read from a child stream.
type ProcessOutputEvent struct {
	ProcessID string     `json:"process_id"`
	Chunk     string     `json:"chunk"`
	Stream    StreamKind `json:"stream"`
}

// ProcessProgressEvent carries one classified progress line.
type ProcessProgressEvent struct {
	ProcessID string       `json:"process_id"`
	Kind      ProgressKind `json:"kind"`
	Message   string       `json:"message"`
}

// ProcessCompletedEvent is published exactly once when a process reaches a
// terminal state after having run.
type ProcessCompletedEvent struct {
	ProcessID  string        `json:"process_id"`
	PlatformID string        `json:"platform_id"`
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration"`
	Results    *Results      `json:"results,omitempty"`
}

// ProcessErrorEvent is published for spawn-level failures where the child
// never reached running output handling.
type ProcessErrorEvent struct {
	ProcessID  string `json:"process_id"`
	PlatformID string `json:"platform_id"`
	Error      string `json:"error"`
}

// DedupCompletedEvent is published after a completion has been handed off to
// the deduplication pipeline, so UI clients can reflect the handoff.
type DedupCompletedEvent struct {
	ProcessID  string    `json:"process_id"`
	PlatformID string    `json:"platform_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// PipelineEvent is the normalized event forwarded to the deduplication
// pipeline on successful completion.
type PipelineEvent struct {
	Kind      string                 `json:"kind"`
	Source    string                 `json:"source"`
	Payload   *ProcessCompletedEvent `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}
