package interfaces

import (
	"github.com/ternarybob/colligo/internal/models"
)

// OrchestratorService owns the process table, spawns scraper child processes,
// classifies their streamed output and emits lifecycle events.
type OrchestratorService interface {
	RunningChecker

	// Trigger starts a scraper run for a platform. Validation failures
	// (unknown platform, platform already running) are returned inside the
	// result, never as a raised error.
	Trigger(platformID string, opts models.TriggerOptions) models.TriggerResult

	// Kill terminates a running process: graceful signal first, forced kill
	// after the grace period. Returns false for unknown or non-running ids.
	Kill(processID string) bool

	// GetProcess returns a snapshot of one process record
	GetProcess(processID string) (*models.ProcessRecord, bool)

	// GetAllProcesses returns snapshots of every tracked process record
	GetAllProcesses() []*models.ProcessRecord

	// GetActiveProcesses returns snapshots of running records only
	GetActiveProcesses() []*models.ProcessRecord

	// Cleanup evicts terminal records older than the retention window.
	// Returns the number of evicted records.
	Cleanup() int
}

// OutputClassifier turns unstructured scraper output into display lines,
// progress events and a final results summary. All methods are pure and
// best-effort: extraction never fails the surrounding operation.
type OutputClassifier interface {
	// FilterForDisplay drops noise lines in normal mode; in debug mode the
	// text is returned unmodified
	FilterForDisplay(text string, debug bool) string

	// ExtractProgress classifies a single line by its leading status marker
	ExtractProgress(line string) (*models.ProgressEvent, bool)

	// ExtractResults computes the results summary from the full raw output,
	// the exit code and whether the run was operator-terminated. The killed
	// flag, not the exit code, decides the operator-termination label since
	// signal deaths also report -1.
	ExtractResults(output string, exitCode int, killed bool) *models.Results
}
