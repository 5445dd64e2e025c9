package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/classifier"
	"github.com/ternarybob/colligo/internal/services/events"
)

// stubRegistry serves a fixed command per platform so orchestration tests can
// run small shell scripts instead of real scrapers.
type stubRegistry struct {
	commands map[string]string
}

func (r *stubRegistry) GetPlatform(platformID string) (models.Platform, bool) {
	if _, ok := r.commands[platformID]; !ok {
		return models.Platform{}, false
	}
	return models.Platform{ID: platformID, Name: platformID}, true
}

func (r *stubRegistry) BuildCommand(platformID string, opts models.TriggerOptions) string {
	return r.commands[platformID]
}

func (r *stubRegistry) ListPlatforms() []models.Platform                 { return nil }
func (r *stubRegistry) ListAllPlatforms() []models.AnnotatedPlatform    { return nil }
func (r *stubRegistry) Reload(ctx context.Context) error                { return nil }
func (r *stubRegistry) ResetConfigs(ctx context.Context) error          { return nil }
func (r *stubRegistry) UpdateConfig(ctx context.Context, platformID string, update models.PlatformConfigUpdate) error {
	return nil
}
func (r *stubRegistry) BulkUpdate(ctx context.Context, updates map[string]models.PlatformConfigUpdate) error {
	return nil
}

type orchestratorHarness struct {
	svc      *Service
	events   interfaces.EventService
	registry *stubRegistry
	config   *common.ScrapersConfig
	dir      string
}

func newHarness(t *testing.T) *orchestratorHarness {
	t.Helper()

	dir := t.TempDir()
	registry := &stubRegistry{commands: make(map[string]string)}
	eventService := events.NewService(arbor.NewLogger())
	config := &common.ScrapersConfig{
		Runtime:         "sh",
		Dir:             dir,
		KillGracePeriod: "500ms",
		Retention:       "24h",
	}

	svc := NewService(registry, classifier.NewService(), eventService, config, arbor.NewLogger())
	return &orchestratorHarness{
		svc:      svc,
		events:   eventService,
		registry: registry,
		config:   config,
		dir:      dir,
	}
}

// addScript writes a shell script into the scraper working directory and maps
// the platform to it.
func (h *orchestratorHarness) addScript(t *testing.T, platformID, name, body string) {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	h.registry.commands[platformID] = "sh " + name
}

// subscribeCompleted returns a channel that receives terminal completed
// events. Subscribe before triggering so the event cannot be missed.
func (h *orchestratorHarness) subscribeCompleted(t *testing.T) <-chan models.ProcessCompletedEvent {
	t.Helper()
	ch := make(chan models.ProcessCompletedEvent, 4)
	_, err := h.events.Subscribe(interfaces.EventProcessCompleted, func(ctx context.Context, event interfaces.Event) error {
		if completed, ok := event.Payload.(models.ProcessCompletedEvent); ok {
			ch <- completed
		}
		return nil
	})
	require.NoError(t, err)
	return ch
}

func (h *orchestratorHarness) subscribeErrors(t *testing.T) <-chan models.ProcessErrorEvent {
	t.Helper()
	ch := make(chan models.ProcessErrorEvent, 4)
	_, err := h.events.Subscribe(interfaces.EventProcessError, func(ctx context.Context, event interfaces.Event) error {
		if errEvent, ok := event.Payload.(models.ProcessErrorEvent); ok {
			ch <- errEvent
		}
		return nil
	})
	require.NoError(t, err)
	return ch
}

func awaitCompleted(t *testing.T, ch <-chan models.ProcessCompletedEvent) models.ProcessCompletedEvent {
	t.Helper()
	select {
	case completed := <-ch:
		return completed
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for process completion")
		return models.ProcessCompletedEvent{}
	}
}

func TestTrigger_UnknownPlatform(t *testing.T) {
	h := newHarness(t)

	result := h.svc.Trigger("nope", models.TriggerOptions{})

	assert.False(t, result.Success)
	assert.Equal(t, "Unknown platform: nope", result.Error)
	assert.Empty(t, result.ProcessID)
	assert.Empty(t, h.svc.GetAllProcesses(), "rejected trigger must not leave a record")
}

func TestTrigger_SuccessfulRun(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "moneyfacts", "success.sh", `
echo "[Info] Starting extraction"
echo "✅ Found 41 rates"
echo "Processed 41 products for database"
echo "moneyfacts: Completed successfully"
`)
	completedCh := h.subscribeCompleted(t)

	result := h.svc.Trigger("moneyfacts", models.TriggerOptions{})
	require.True(t, result.Success)
	require.NotEmpty(t, result.ProcessID)

	completed := awaitCompleted(t, completedCh)
	assert.Equal(t, result.ProcessID, completed.ProcessID)
	assert.Equal(t, "moneyfacts", completed.PlatformID)
	assert.True(t, completed.Success)
	assert.Equal(t, 0, completed.ExitCode)

	record, ok := h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	assert.Equal(t, models.ProcessStatusCompleted, record.Status)
	require.NotNil(t, record.Results)
	require.NotNil(t, record.Results.RecordCount)
	assert.Equal(t, 41, *record.Results.RecordCount)
	require.NotNil(t, record.Results.ProcessedCount)
	assert.Equal(t, 41, *record.Results.ProcessedCount)
	assert.Contains(t, record.Output, "✅ Found 41 rates")
	require.NotNil(t, record.EndTime)
	require.NotNil(t, record.ExitCode)
	assert.Equal(t, 0, *record.ExitCode)
}

func TestTrigger_FailedRunShowsFullOutput(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "flagstone", "fail.sh", `
echo "[Debug] internal chatter"
echo "[Error] login rejected"
exit 3
`)
	completedCh := h.subscribeCompleted(t)

	result := h.svc.Trigger("flagstone", models.TriggerOptions{})
	require.True(t, result.Success)

	completed := awaitCompleted(t, completedCh)
	assert.False(t, completed.Success)
	assert.Equal(t, 3, completed.ExitCode)

	record, ok := h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	assert.Equal(t, models.ProcessStatusError, record.Status)

	// Failed runs surface the unfiltered output, debug lines included.
	assert.Equal(t, record.Output, record.FilteredOutput)
	require.NotNil(t, record.Results)
	assert.Contains(t, record.Results.Error, "[Error] login rejected")
}

func TestTrigger_SingleFlightPerPlatform(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "flagstone", "slow.sh", "exec sleep 30\n")
	completedCh := h.subscribeCompleted(t)

	first := h.svc.Trigger("flagstone", models.TriggerOptions{})
	require.True(t, first.Success)

	second := h.svc.Trigger("flagstone", models.TriggerOptions{})
	assert.False(t, second.Success)
	assert.Equal(t, "Platform flagstone is already running", second.Error)
	assert.Empty(t, second.ProcessID)
	assert.True(t, h.svc.IsRunning("flagstone"))

	require.True(t, h.svc.Kill(first.ProcessID))
	awaitCompleted(t, completedCh)

	// After the first run terminates a new trigger is accepted again.
	assert.False(t, h.svc.IsRunning("flagstone"))
	third := h.svc.Trigger("flagstone", models.TriggerOptions{})
	assert.True(t, third.Success)
	require.True(t, h.svc.Kill(third.ProcessID))
	awaitCompleted(t, completedCh)
}

func TestTrigger_ConcurrentSingleFlight(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "flagstone", "slow.sh", "exec sleep 30\n")
	completedCh := h.subscribeCompleted(t)

	const attempts = 16
	results := make([]models.TriggerResult, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = h.svc.Trigger("flagstone", models.TriggerOptions{})
		}(i)
	}
	wg.Wait()

	var winner string
	accepted := 0
	for _, result := range results {
		if result.Success {
			accepted++
			winner = result.ProcessID
		} else {
			assert.Equal(t, "Platform flagstone is already running", result.Error)
		}
	}
	assert.Equal(t, 1, accepted, "exactly one concurrent trigger may win")
	require.Len(t, h.svc.GetAllProcesses(), 1)

	require.True(t, h.svc.Kill(winner))
	awaitCompleted(t, completedCh)
}

func TestKill_MarksRecordWithSentinelExitCode(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "raisin", "slow.sh", "exec sleep 30\n")
	completedCh := h.subscribeCompleted(t)

	result := h.svc.Trigger("raisin", models.TriggerOptions{})
	require.True(t, result.Success)

	require.True(t, h.svc.Kill(result.ProcessID))

	// The record is terminal immediately, before the child has exited.
	record, ok := h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	assert.Equal(t, models.ProcessStatusError, record.Status)
	require.NotNil(t, record.ExitCode)
	assert.Equal(t, models.ExitCodeKilled, *record.ExitCode)

	completed := awaitCompleted(t, completedCh)
	assert.False(t, completed.Success)
	assert.Equal(t, models.ExitCodeKilled, completed.ExitCode)

	record, ok = h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	assert.True(t, record.Killed)
	require.NotNil(t, record.Results)
	assert.Equal(t, "terminated by operator", record.Results.Error)

	// A second kill on an already-terminal record is a no-op.
	assert.False(t, h.svc.Kill(result.ProcessID))
}

func TestSignalDeath_NotLabeledOperatorKill(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "moneyfacts", "crash.sh", `
echo "[Info] Starting extraction"
kill -SEGV $$
`)
	completedCh := h.subscribeCompleted(t)

	result := h.svc.Trigger("moneyfacts", models.TriggerOptions{})
	require.True(t, result.Success)

	completed := awaitCompleted(t, completedCh)
	assert.False(t, completed.Success)
	assert.Equal(t, -1, completed.ExitCode, "signal deaths report -1 like operator kills")

	// Nobody called Kill, so the record must not carry the operator label.
	record, ok := h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	assert.Equal(t, models.ProcessStatusError, record.Status)
	assert.False(t, record.Killed)
	require.NotNil(t, record.Results)
	assert.Equal(t, "process terminated by signal", record.Results.Error)
}

func TestKill_UnknownProcess(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.svc.Kill("missing-123"))
}

func TestTrigger_SpawnFailureRecordedAsynchronously(t *testing.T) {
	h := newHarness(t)
	h.registry.commands["moneyfacts"] = "definitely-not-a-real-binary --headless"
	errorCh := h.subscribeErrors(t)

	// Validation passed, so the trigger itself is accepted; the spawn failure
	// surfaces through the record and the error event.
	result := h.svc.Trigger("moneyfacts", models.TriggerOptions{})
	require.True(t, result.Success)
	require.NotEmpty(t, result.ProcessID)

	select {
	case errEvent := <-errorCh:
		assert.Equal(t, result.ProcessID, errEvent.ProcessID)
		assert.NotEmpty(t, errEvent.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for spawn error event")
	}

	record, ok := h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	assert.Equal(t, models.ProcessStatusError, record.Status)
	require.NotNil(t, record.ExitCode)
	assert.Equal(t, -1, *record.ExitCode)
	require.NotNil(t, record.Results)
	assert.NotEmpty(t, record.Results.Error)
	assert.False(t, h.svc.IsRunning("moneyfacts"))
}

func TestCleanup_EvictsExpiredTerminalRecords(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "moneyfacts", "quick.sh", "echo done\n")
	h.addScript(t, "raisin", "slow.sh", "exec sleep 30\n")
	completedCh := h.subscribeCompleted(t)

	finished := h.svc.Trigger("moneyfacts", models.TriggerOptions{})
	require.True(t, finished.Success)
	awaitCompleted(t, completedCh)

	running := h.svc.Trigger("raisin", models.TriggerOptions{})
	require.True(t, running.Success)

	// Nothing is old enough yet under the default retention.
	assert.Equal(t, 0, h.svc.Cleanup())

	h.config.Retention = "1ms"
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, h.svc.Cleanup())

	_, ok := h.svc.GetProcess(finished.ProcessID)
	assert.False(t, ok, "expired terminal record should be evicted")

	// The running record survives regardless of age.
	_, ok = h.svc.GetProcess(running.ProcessID)
	assert.True(t, ok)

	require.True(t, h.svc.Kill(running.ProcessID))
	awaitCompleted(t, completedCh)
}

func TestGetActiveProcesses(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "hl", "slow.sh", "exec sleep 30\n")
	completedCh := h.subscribeCompleted(t)

	result := h.svc.Trigger("hl", models.TriggerOptions{})
	require.True(t, result.Success)

	active := h.svc.GetActiveProcesses()
	require.Len(t, active, 1)
	assert.Equal(t, result.ProcessID, active[0].ID)

	require.True(t, h.svc.Kill(result.ProcessID))
	awaitCompleted(t, completedCh)

	assert.Empty(t, h.svc.GetActiveProcesses())
}

func TestSnapshotsAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.addScript(t, "moneyfacts", "quick.sh", "echo \"[Info] one line\"\n")
	completedCh := h.subscribeCompleted(t)

	result := h.svc.Trigger("moneyfacts", models.TriggerOptions{})
	require.True(t, result.Success)
	awaitCompleted(t, completedCh)

	first, ok := h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	require.NotEmpty(t, first.Output)
	first.Output[0] = "mutated"

	second, ok := h.svc.GetProcess(result.ProcessID)
	require.True(t, ok)
	assert.Equal(t, "[Info] one line", second.Output[0])
}
