package models

import (
	"fmt"
	"time"
)

// ProcessStatus represents the lifecycle state of a scraper run.
// Transitions are monotonic: idle -> running -> completed | error.
type ProcessStatus string

const (
	ProcessStatusIdle      ProcessStatus = "idle"
	ProcessStatusRunning   ProcessStatus = "running"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusError     ProcessStatus = "error"
)

// IsTerminal returns true when no further status transitions are possible.
func (s ProcessStatus) IsTerminal() bool {
	return s == ProcessStatusCompleted || s == ProcessStatusError
}

// ExitCodeKilled is the sentinel exit code recorded when an operator
// terminates a running process. A child killed by an external signal also
// reports -1, so the Killed flag on the record, not the exit code, is the
// source of truth for operator termination.
const ExitCodeKilled = -1

// ProcessRecord is the in-memory bookkeeping entry for one run of one
// platform's scraper. The OS process handle is owned by the orchestrator and
// never exposed here.
type ProcessRecord struct {
	ID             string        `json:"id"`
	PlatformID     string        `json:"platform_id"`
	Command        string        `json:"command"`
	Status         ProcessStatus `json:"status"`
	Output         []string      `json:"output"`
	FilteredOutput []string      `json:"filtered_output"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	ExitCode       *int          `json:"exit_code,omitempty"`
	Killed         bool          `json:"killed,omitempty"`
	Results        *Results      `json:"results,omitempty"`
}

// NewProcessID allocates a process id unique per run: platform id plus
// creation timestamp in milliseconds.
func NewProcessID(platformID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", platformID, at.UnixMilli())
}

// Duration returns the elapsed run time, or time since start for a running
// process.
func (r *ProcessRecord) Duration() time.Duration {
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	if r.StartTime.IsZero() {
		return 0
	}
	return time.Since(r.StartTime)
}

// TriggerOptions carries per-run options for a scraper launch.
type TriggerOptions struct {
	AccountTypes []string `json:"account_types,omitempty"` // Comma-joined into --types for modular platforms
	ExcludeTypes []string `json:"exclude_types,omitempty"` // Comma-joined into --exclude for modular platforms
	Visible      bool     `json:"visible,omitempty"`       // Run with a visible browser when the platform supports it
	Verbose      bool     `json:"verbose,omitempty"`
}

// TriggerResult is the discriminated result returned by Trigger. Validation
// failures are reported here, never as errors.
type TriggerResult struct {
	Success   bool   `json:"success"`
	ProcessID string `json:"process_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
