package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Coordinator subscribes to orchestrator completion events and forwards
// successful runs to the deduplication pipeline. Failed scrapes are never
// forwarded, and a forward failure never affects the scrape's own outcome.
type Coordinator struct {
	factory interfaces.PipelineFactory
	opts    interfaces.PipelineOptions
	timeout time.Duration
	events  interfaces.EventService
	logger  arbor.ILogger

	mu            sync.Mutex
	enabled       bool
	initialized   bool
	initAttempted bool
	consumer      interfaces.PipelineConsumer
}

var _ interfaces.DedupService = (*Coordinator)(nil)

// NewCoordinator creates the handoff coordinator and subscribes it to
// process completion events. The pipeline consumer itself is constructed
// lazily on first use.
func NewCoordinator(
	config *common.DedupConfig,
	factory interfaces.PipelineFactory,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Coordinator {
	c := &Coordinator{
		factory: factory,
		opts: interfaces.PipelineOptions{
			EnableAutomaticProcessing: config.Enabled,
			ProcessingTimeoutMs:       int(config.ProcessingTimeoutDuration() / time.Millisecond),
			MaxRetries:                config.MaxRetries,
			CircuitBreakerThreshold:   config.CircuitBreakerThreshold,
			EnableFallbackProcessing:  config.EnableFallback,
		},
		timeout: config.ProcessingTimeoutDuration(),
		events:  eventService,
		enabled: config.Enabled,
		logger:  logger,
	}

	if eventService != nil {
		if _, err := eventService.Subscribe(interfaces.EventProcessCompleted, c.handleProcessCompleted); err != nil {
			logger.Error().Err(err).Msg("Failed to subscribe to process completion events")
		}
	}

	return c
}

// ensureInitialized constructs the pipeline consumer exactly once per
// process lifetime. A construction failure permanently disables the
// coordinator; every later operation becomes a no-op reporting "disabled".
func (c *Coordinator) ensureInitialized() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initAttempted {
		return
	}
	c.initAttempted = true

	consumer, err := c.factory(c.opts)
	if err != nil {
		c.enabled = false
		c.initialized = false
		c.logger.Error().Err(err).Msg("Pipeline consumer initialization failed, deduplication disabled")
		return
	}

	c.consumer = consumer
	c.initialized = true
	c.logger.Info().Msg("Deduplication pipeline consumer initialized")
}

// handleProcessCompleted forwards successful completions to the pipeline.
// Downstream errors are logged and swallowed so they cannot crash the
// orchestrator or mark the scrape as failed.
func (c *Coordinator) handleProcessCompleted(ctx context.Context, event interfaces.Event) error {
	completed, ok := event.Payload.(models.ProcessCompletedEvent)
	if !ok {
		c.logger.Warn().Msg("Invalid process completion payload type")
		return nil
	}

	if !completed.Success {
		// The pipeline only runs on successful data collection.
		return nil
	}

	c.mu.Lock()
	enabled := c.enabled
	c.mu.Unlock()
	if !enabled {
		return nil
	}

	c.ensureInitialized()

	c.mu.Lock()
	consumer := c.consumer
	ready := c.enabled && c.initialized
	c.mu.Unlock()
	if !ready {
		return nil
	}

	pipelineEvent := models.PipelineEvent{
		Kind:      "scraper:completed",
		Source:    completed.ProcessID,
		Payload:   &completed,
		Timestamp: time.Now(),
	}

	forwardCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := consumer.Emit(forwardCtx, pipelineEvent); err != nil {
		c.logger.Error().
			Err(err).
			Str("process_id", completed.ProcessID).
			Msg("Pipeline handoff failed")
		return nil
	}

	c.logger.Info().
		Str("process_id", completed.ProcessID).
		Str("platform_id", completed.PlatformID).
		Msg("Completion handed off to deduplication pipeline")

	if c.events != nil {
		if err := c.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventDedupCompleted,
			Payload: models.DedupCompletedEvent{
				ProcessID:  completed.ProcessID,
				PlatformID: completed.PlatformID,
				Timestamp:  time.Now(),
			},
		}); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to publish dedup completion event")
		}
	}

	return nil
}

// TriggerManual forces a pipeline run outside the event path
func (c *Coordinator) TriggerManual(ctx context.Context) interfaces.DedupResult {
	c.ensureInitialized()

	c.mu.Lock()
	enabled, initialized, consumer := c.enabled, c.initialized, c.consumer
	c.mu.Unlock()

	if !enabled {
		return interfaces.DedupResult{Success: false, Message: "Deduplication is disabled"}
	}
	if !initialized {
		return interfaces.DedupResult{Success: false, Message: "Deduplication is not initialized"}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := consumer.TriggerManualProcessing(runCtx); err != nil {
		return interfaces.DedupResult{
			Success: false,
			Message: fmt.Sprintf("Manual deduplication failed: %v", err),
		}
	}

	return interfaces.DedupResult{Success: true, Message: "Deduplication processing triggered"}
}

// GetStatus reports coordinator flags plus consumer stats and circuit
// breaker state when available. A stats query failure is logged, never
// raised.
func (c *Coordinator) GetStatus() interfaces.DedupStatus {
	c.ensureInitialized()

	c.mu.Lock()
	status := interfaces.DedupStatus{
		Enabled:     c.enabled,
		Initialized: c.initialized,
	}
	consumer := c.consumer
	c.mu.Unlock()

	if consumer != nil {
		if stats, err := consumer.GetStats(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to query pipeline stats")
		} else {
			status.Stats = &stats
		}
		status.CircuitBreakerState = consumer.GetCircuitBreakerState()
	}

	return status
}

// SetEnabled toggles forwarding without tearing down state. Disabling does
// not cancel in-flight forwards, only suppresses future ones.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.mu.Lock()
	// A failed initialization keeps the coordinator disabled for good.
	if c.initAttempted && !c.initialized {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled
	c.mu.Unlock()

	c.logger.Info().Bool("enabled", enabled).Msg("Deduplication forwarding toggled")
}
