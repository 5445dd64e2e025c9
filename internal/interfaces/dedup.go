package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// CircuitState is the resilience state of the pipeline consumer's circuit
// breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// PipelineOptions configures a pipeline consumer at initialization.
type PipelineOptions struct {
	EnableAutomaticProcessing bool
	ProcessingTimeoutMs       int
	MaxRetries                int
	CircuitBreakerThreshold   int
	EnableFallbackProcessing  bool
}

// PipelineStats is the consumer's internal counters, exposed for status
// introspection.
type PipelineStats struct {
	EventsReceived   int `json:"events_received"`
	EventsProcessed  int `json:"events_processed"`
	EventsFailed     int `json:"events_failed"`
	FallbackQueued   int `json:"fallback_queued"`
	RetriesAttempted int `json:"retries_attempted"`
}

// PipelineConsumer is the handle exposed by the external deduplication
// pipeline. Its matching and merge internals are out of scope; only this
// contract is depended upon.
type PipelineConsumer interface {
	// Emit forwards a normalized completion event into the pipeline
	Emit(ctx context.Context, event models.PipelineEvent) error

	// TriggerManualProcessing forces a pipeline run outside the event path
	TriggerManualProcessing(ctx context.Context) error

	// GetStats returns the consumer's internal counters
	GetStats() (PipelineStats, error)

	// GetCircuitBreakerState returns the current breaker state
	GetCircuitBreakerState() CircuitState
}

// PipelineFactory constructs the pipeline consumer entry point. Construction
// happens at most once per process lifetime; a returned error permanently
// disables the handoff coordinator.
type PipelineFactory func(opts PipelineOptions) (PipelineConsumer, error)

// DedupResult is the discriminated result of operator-facing dedup
// operations.
type DedupResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DedupStatus reports the handoff coordinator's state. Stats and
// CircuitBreakerState are only populated once the consumer is initialized.
type DedupStatus struct {
	Enabled             bool           `json:"enabled"`
	Initialized         bool           `json:"initialized"`
	Stats               *PipelineStats `json:"stats,omitempty"`
	CircuitBreakerState CircuitState   `json:"circuit_breaker_state,omitempty"`
}

// DedupService is the handoff coordinator between orchestrator completion
// events and the external deduplication pipeline.
type DedupService interface {
	// TriggerManual forces a pipeline run; fails fast with a descriptive
	// message when disabled or uninitialized
	TriggerManual(ctx context.Context) DedupResult

	// GetStatus reports coordinator and consumer state
	GetStatus() DedupStatus

	// SetEnabled toggles event forwarding without tearing down state
	SetEnabled(enabled bool)
}
