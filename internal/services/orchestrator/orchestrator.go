package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// managedProcess pairs a process record with its private OS handle. The
// handle never leaves this package.
type managedProcess struct {
	record *models.ProcessRecord
	cmd    *exec.Cmd
	done   chan struct{} // closed when the child has exited
	killed bool          // operator-initiated termination
}

// Service implements OrchestratorService. The process table is the single
// piece of shared mutable state; every mutation happens under mu so the
// single-flight-per-platform invariant holds under concurrent triggers.
type Service struct {
	registry   interfaces.RegistryService
	classifier interfaces.OutputClassifier
	events     interfaces.EventService
	config     *common.ScrapersConfig
	logger     arbor.ILogger

	mu        sync.Mutex
	processes map[string]*managedProcess
}

var _ interfaces.OrchestratorService = (*Service)(nil)

// NewService creates a new process orchestrator
func NewService(
	registry interfaces.RegistryService,
	classifier interfaces.OutputClassifier,
	eventService interfaces.EventService,
	config *common.ScrapersConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		registry:   registry,
		classifier: classifier,
		events:     eventService,
		config:     config,
		logger:     logger,
		processes:  make(map[string]*managedProcess),
	}
}

// Trigger starts a scraper run for a platform. Unknown platforms and
// single-flight violations come back as structured failures, never errors.
func (s *Service) Trigger(platformID string, opts models.TriggerOptions) models.TriggerResult {
	platform, ok := s.registry.GetPlatform(platformID)
	if !ok {
		return models.TriggerResult{
			Success: false,
			Error:   fmt.Sprintf("Unknown platform: %s", platformID),
		}
	}

	command := s.registry.BuildCommand(platform.ID, opts)
	now := time.Now()
	processID := models.NewProcessID(platform.ID, now)

	record := &models.ProcessRecord{
		ID:         processID,
		PlatformID: platform.ID,
		Command:    command,
		Status:     models.ProcessStatusIdle,
	}

	proc := &managedProcess{
		record: record,
		done:   make(chan struct{}),
	}

	// Check-then-insert is atomic: the record is reserved inside the lock so
	// a concurrent trigger for the same platform sees it as running.
	s.mu.Lock()
	if s.runningLocked(platform.ID) {
		s.mu.Unlock()
		return models.TriggerResult{
			Success: false,
			Error:   fmt.Sprintf("Platform %s is already running", platform.ID),
		}
	}
	record.Status = models.ProcessStatusRunning
	record.StartTime = now
	s.processes[processID] = proc
	s.mu.Unlock()

	if err := s.spawn(proc); err != nil {
		s.failSpawn(proc, err)
		return models.TriggerResult{Success: true, ProcessID: processID}
	}

	s.logger.Info().
		Str("process_id", processID).
		Str("platform_id", platform.ID).
		Str("command", command).
		Msg("Scraper process started")

	s.publish(interfaces.EventProcessStarted, models.ProcessStartedEvent{
		ProcessID:  processID,
		PlatformID: platform.ID,
	})

	return models.TriggerResult{Success: true, ProcessID: processID}
}

// spawn launches the child with the platform's scraper directory as working
// directory and the host environment inherited, then starts the stream pumps
// and the exit watcher. Returns an error only for spawn-level failures.
func (s *Service) spawn(proc *managedProcess) error {
	argv := strings.Fields(proc.record.Command)
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.config.Dir
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn process: %w", err)
	}

	s.mu.Lock()
	proc.cmd = cmd
	s.mu.Unlock()

	var pumps sync.WaitGroup
	pumps.Add(2)
	go s.pumpStream(proc, stdout, models.StreamStdout, &pumps)
	go s.pumpStream(proc, stderr, models.StreamStderr, &pumps)
	go s.watchExit(proc, &pumps)

	return nil
}

// failSpawn marks a record that never reached running output handling and
// emits a process:error event.
func (s *Service) failSpawn(proc *managedProcess, spawnErr error) {
	now := time.Now()
	exitCode := -1

	s.mu.Lock()
	record := proc.record
	record.Status = models.ProcessStatusError
	record.EndTime = &now
	record.ExitCode = &exitCode
	record.Results = &models.Results{
		Success: false,
		Error:   spawnErr.Error(),
	}
	close(proc.done)
	s.mu.Unlock()

	s.logger.Error().
		Err(spawnErr).
		Str("process_id", record.ID).
		Str("platform_id", record.PlatformID).
		Msg("Failed to spawn scraper process")

	s.publish(interfaces.EventProcessError, models.ProcessErrorEvent{
		ProcessID:  record.ID,
		PlatformID: record.PlatformID,
		Error:      spawnErr.Error(),
	})
}

// pumpStream reads one child stream line by line. Each line is appended
// verbatim to the raw output, passed through the display filter, forwarded as
// an output event and scanned for a progress marker.
func (s *Service) pumpStream(proc *managedProcess, r io.Reader, stream models.StreamKind, pumps *sync.WaitGroup) {
	defer pumps.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		s.mu.Lock()
		proc.record.Output = append(proc.record.Output, line)
		if filtered := s.classifier.FilterForDisplay(line, false); filtered != "" {
			proc.record.FilteredOutput = append(proc.record.FilteredOutput, filtered)
		}
		processID := proc.record.ID
		s.mu.Unlock()

		s.publish(interfaces.EventProcessOutput, models.ProcessOutputEvent{
			ProcessID: processID,
			Chunk:     line,
			Stream:    stream,
		})

		if progress, ok := s.classifier.ExtractProgress(line); ok {
			s.publish(interfaces.EventProcessProgress, models.ProcessProgressEvent{
				ProcessID: processID,
				Kind:      progress.Kind,
				Message:   progress.Message,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Debug().
			Err(err).
			Str("process_id", proc.record.ID).
			Str("stream", string(stream)).
			Msg("Stream reader stopped")
	}
}

// watchExit waits for the child to exit, finalizes the record exactly once
// and emits the terminal completed event.
func (s *Service) watchExit(proc *managedProcess, pumps *sync.WaitGroup) {
	// Drain both pipes before Wait closes them.
	pumps.Wait()

	err := proc.cmd.Wait()
	exitCode := exitCodeFromWait(proc.cmd, err)
	now := time.Now()

	s.mu.Lock()
	record := proc.record

	if proc.killed {
		// Kill already marked the record with the sentinel exit code; the
		// natural exit code is discarded.
		exitCode = *record.ExitCode
	} else {
		record.EndTime = &now
		record.ExitCode = &exitCode
		if exitCode == 0 {
			record.Status = models.ProcessStatusCompleted
		} else {
			record.Status = models.ProcessStatusError
		}
	}

	rawOutput := strings.Join(record.Output, "\n")
	if record.Status == models.ProcessStatusError {
		// Show everything on failure to aid diagnosis.
		record.FilteredOutput = append([]string(nil), record.Output...)
	}

	record.Results = s.classifier.ExtractResults(rawOutput, exitCode, proc.killed)

	completed := models.ProcessCompletedEvent{
		ProcessID:  record.ID,
		PlatformID: record.PlatformID,
		Success:    record.Results.Success,
		ExitCode:   exitCode,
		Duration:   record.Duration(),
		Results:    record.Results,
	}
	close(proc.done)
	s.mu.Unlock()

	s.logger.Info().
		Str("process_id", record.ID).
		Str("platform_id", record.PlatformID).
		Bool("success", completed.Success).
		Int("exit_code", exitCode).
		Dur("duration", completed.Duration).
		Msg("Scraper process finished")

	s.publish(interfaces.EventProcessCompleted, completed)

	if completed.Success {
		s.sweepArtifacts(record.PlatformID, time.Now())
	}
}

// exitCodeFromWait extracts the child's exit code from cmd.Wait's result.
func exitCodeFromWait(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// Kill terminates a running process: graceful SIGTERM first, SIGKILL after
// the grace period. The record is marked error immediately with the operator
// sentinel exit code. Unknown, idle or terminal process ids return false
// without side effects.
func (s *Service) Kill(processID string) bool {
	s.mu.Lock()
	proc, ok := s.processes[processID]
	if !ok || proc.record.Status != models.ProcessStatusRunning || proc.cmd == nil || proc.killed {
		s.mu.Unlock()
		return false
	}

	now := time.Now()
	exitCode := models.ExitCodeKilled
	proc.killed = true
	proc.record.Killed = true
	proc.record.Status = models.ProcessStatusError
	proc.record.EndTime = &now
	proc.record.ExitCode = &exitCode
	cmd := proc.cmd
	done := proc.done
	s.mu.Unlock()

	s.logger.Info().
		Str("process_id", processID).
		Msg("Terminating scraper process")

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warn().
			Err(err).
			Str("process_id", processID).
			Msg("Graceful terminate signal failed, killing immediately")
		if err := cmd.Process.Kill(); err != nil {
			s.logger.Warn().Err(err).Str("process_id", processID).Msg("Force kill failed")
		}
		return true
	}

	// Escalate to SIGKILL after the grace period unless the child exits
	// first; the timer is tied to the exit signal so it never fires
	// spuriously.
	go func() {
		select {
		case <-done:
		case <-time.After(s.config.KillGracePeriodDuration()):
			s.logger.Warn().
				Str("process_id", processID).
				Msg("Grace period expired, sending force kill")
			if err := cmd.Process.Kill(); err != nil {
				s.logger.Warn().Err(err).Str("process_id", processID).Msg("Force kill failed")
			}
		}
	}()

	return true
}

// Cleanup evicts terminal records whose end time is older than the retention
// window. Running records are never evicted. Returns the eviction count.
func (s *Service) Cleanup() int {
	retention := s.config.RetentionDuration()
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, proc := range s.processes {
		record := proc.record
		if !record.Status.IsTerminal() {
			continue
		}
		if record.EndTime != nil && record.EndTime.Before(cutoff) {
			delete(s.processes, id)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info().
			Int("evicted", evicted).
			Msg("Evicted expired process records")
	}

	return evicted
}

// IsRunning reports whether any process for a platform is currently running
func (s *Service) IsRunning(platformID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked(platformID)
}

// runningLocked must be called with mu held.
func (s *Service) runningLocked(platformID string) bool {
	for _, proc := range s.processes {
		if proc.record.PlatformID == platformID && proc.record.Status == models.ProcessStatusRunning {
			return true
		}
	}
	return false
}

// GetProcess returns a snapshot of one process record
func (s *Service) GetProcess(processID string) (*models.ProcessRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proc, ok := s.processes[processID]
	if !ok {
		return nil, false
	}
	return snapshotRecord(proc.record), true
}

// GetAllProcesses returns snapshots of every tracked process record
func (s *Service) GetAllProcesses() []*models.ProcessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*models.ProcessRecord, 0, len(s.processes))
	for _, proc := range s.processes {
		records = append(records, snapshotRecord(proc.record))
	}
	return records
}

// GetActiveProcesses returns snapshots of running records only
func (s *Service) GetActiveProcesses() []*models.ProcessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*models.ProcessRecord
	for _, proc := range s.processes {
		if proc.record.Status == models.ProcessStatusRunning {
			records = append(records, snapshotRecord(proc.record))
		}
	}
	return records
}

// snapshotRecord copies a record so callers never share the orchestrator's
// mutable slices.
func snapshotRecord(record *models.ProcessRecord) *models.ProcessRecord {
	snapshot := *record
	snapshot.Output = append([]string(nil), record.Output...)
	snapshot.FilteredOutput = append([]string(nil), record.FilteredOutput...)
	return &snapshot
}

// publish emits an event asynchronously; the orchestrator never blocks on
// its listeners.
func (s *Service) publish(eventType interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_type", string(eventType)).
			Msg("Failed to publish event")
	}
}
