package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Ingestor is the pipeline's actual processing entry point. The default
// implementation only accepts batches; matching and merge heuristics live in
// the external pipeline and are out of scope here.
type Ingestor func(ctx context.Context, event models.PipelineEvent) error

// Processor is the default PipelineConsumer. It wraps the ingestor with the
// resilience policy the handoff contract requires: bounded timeout per
// attempt, bounded retries, a circuit breaker, and a fallback queue used
// while the breaker is open.
type Processor struct {
	opts     interfaces.PipelineOptions
	cooldown time.Duration
	ingest   Ingestor
	logger   arbor.ILogger

	mu           sync.Mutex
	state        interfaces.CircuitState
	failures     int // consecutive failures since last success
	openedAt     time.Time
	stats        interfaces.PipelineStats
	fallbackSlot []models.PipelineEvent
}

var _ interfaces.PipelineConsumer = (*Processor)(nil)

// NewProcessor constructs the default pipeline consumer. A nil ingestor gets
// the built-in accept-and-log implementation.
func NewProcessor(opts interfaces.PipelineOptions, cooldown time.Duration, ingest Ingestor, logger arbor.ILogger) *Processor {
	p := &Processor{
		opts:     opts,
		cooldown: cooldown,
		ingest:   ingest,
		logger:   logger,
		state:    interfaces.CircuitClosed,
	}
	if p.ingest == nil {
		p.ingest = p.acceptBatch
	}
	return p
}

// Factory adapts NewProcessor to the PipelineFactory signature used by the
// coordinator.
func Factory(cooldown time.Duration, logger arbor.ILogger) interfaces.PipelineFactory {
	return func(opts interfaces.PipelineOptions) (interfaces.PipelineConsumer, error) {
		return NewProcessor(opts, cooldown, nil, logger), nil
	}
}

// acceptBatch is the built-in ingest stub: it assigns the run a batch id and
// acknowledges receipt. The real matching/merge work happens downstream.
func (p *Processor) acceptBatch(ctx context.Context, event models.PipelineEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	batchID := uuid.New().String()
	p.logger.Info().
		Str("batch_id", batchID).
		Str("source", event.Source).
		Str("kind", event.Kind).
		Msg("Pipeline batch accepted")
	return nil
}

// Emit forwards one normalized event into the pipeline, applying the
// resilience policy.
func (p *Processor) Emit(ctx context.Context, event models.PipelineEvent) error {
	p.mu.Lock()
	p.stats.EventsReceived++

	switch p.state {
	case interfaces.CircuitOpen:
		if time.Since(p.openedAt) < p.cooldown {
			// Breaker still open: absorb into the fallback queue when
			// enabled, otherwise reject.
			if p.opts.EnableFallbackProcessing {
				p.fallbackSlot = append(p.fallbackSlot, event)
				p.stats.FallbackQueued++
				p.mu.Unlock()
				p.logger.Warn().
					Str("source", event.Source).
					Msg("Circuit open, event queued for fallback processing")
				return nil
			}
			p.mu.Unlock()
			return fmt.Errorf("circuit breaker open, event rejected")
		}
		// Cooldown elapsed: allow a single probe.
		p.state = interfaces.CircuitHalfOpen
	}
	attempts := p.maxAttempts()
	if p.state == interfaces.CircuitHalfOpen {
		attempts = 1
	}
	p.mu.Unlock()

	err := p.attemptIngest(ctx, event, attempts)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.stats.EventsFailed++
		p.failures++
		if p.state == interfaces.CircuitHalfOpen || p.failures >= p.opts.CircuitBreakerThreshold {
			p.state = interfaces.CircuitOpen
			p.openedAt = time.Now()
			p.logger.Warn().
				Int("consecutive_failures", p.failures).
				Msg("Circuit breaker opened")
		}
		return err
	}

	p.stats.EventsProcessed++
	p.failures = 0
	if p.state != interfaces.CircuitClosed {
		p.state = interfaces.CircuitClosed
		p.logger.Info().Msg("Circuit breaker closed")
	}
	return nil
}

// maxAttempts returns the total attempt budget per event.
func (p *Processor) maxAttempts() int {
	if p.opts.MaxRetries < 0 {
		return 1
	}
	return p.opts.MaxRetries + 1
}

// attemptIngest runs the ingestor with a bounded timeout per attempt,
// retrying up to the attempt budget.
func (p *Processor) attemptIngest(ctx context.Context, event models.PipelineEvent, attempts int) error {
	timeout := time.Duration(p.opts.ProcessingTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = p.ingest(attemptCtx, event)
		cancel()

		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			p.mu.Lock()
			p.stats.RetriesAttempted++
			p.mu.Unlock()
			p.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Str("source", event.Source).
				Msg("Pipeline ingest failed, retrying")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// TriggerManualProcessing drains any fallback-queued events and then runs a
// manual pipeline pass.
func (p *Processor) TriggerManualProcessing(ctx context.Context) error {
	p.mu.Lock()
	queued := p.fallbackSlot
	p.fallbackSlot = nil
	p.mu.Unlock()

	for _, event := range queued {
		if err := p.Emit(ctx, event); err != nil {
			return fmt.Errorf("failed to replay fallback event from %s: %w", event.Source, err)
		}
	}

	manual := models.PipelineEvent{
		Kind:      "manual:trigger",
		Source:    "operator",
		Timestamp: time.Now(),
	}
	return p.attemptIngest(ctx, manual, p.maxAttempts())
}

// GetStats returns the consumer's internal counters
func (p *Processor) GetStats() (interfaces.PipelineStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats, nil
}

// GetCircuitBreakerState returns the current breaker state
func (p *Processor) GetCircuitBreakerState() interfaces.CircuitState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
