package models

// File manifest roles assigned by filename heuristic during result extraction.
const (
	FileRoleRaw        = "raw"
	FileRoleNormalized = "normalized"
	FileRoleLog        = "log"
	FileRoleMain       = "main"
)

// Results is the structured summary extracted from a completed run's raw
// output and exit code. Computed exactly once at completion and immutable
// afterwards. Nil pointer fields mean the corresponding pattern was never
// matched, which is distinct from a zero value.
type Results struct {
	Success        bool              `json:"success"`
	RecordCount    *int              `json:"record_count,omitempty"`
	ProcessedCount *int              `json:"processed_count,omitempty"`
	Message        string            `json:"message,omitempty"`
	Error          string            `json:"error,omitempty"`
	Files          map[string]string `json:"files,omitempty"` // role -> path, last write wins per role
}

// ProgressKind classifies a progress marker found in scraper output.
type ProgressKind string

const (
	ProgressSuccess ProgressKind = "success"
	ProgressInfo    ProgressKind = "info"
	ProgressWarning ProgressKind = "warning"
	ProgressError   ProgressKind = "error"
)

// ProgressEvent is a single classified progress line from a running scraper.
type ProgressEvent struct {
	Kind    ProgressKind `json:"kind"`
	Message string       `json:"message"`
}
