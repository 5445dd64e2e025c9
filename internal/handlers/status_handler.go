package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// StatusHandler reports overall application status.
type StatusHandler struct {
	orchestrator interfaces.OrchestratorService
	registry     interfaces.RegistryService
	startedAt    time.Time
	logger       arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(orchestrator interfaces.OrchestratorService, registry interfaces.RegistryService) *StatusHandler {
	return &StatusHandler{
		orchestrator: orchestrator,
		registry:     registry,
		startedAt:    time.Now(),
		logger:       common.GetLogger(),
	}
}

// GetStatusHandler returns version, uptime and process counts: GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":          common.GetVersion(),
		"uptime":           time.Since(h.startedAt).Round(time.Second).String(),
		"platforms":        len(h.registry.ListAllPlatforms()),
		"processes":        len(h.orchestrator.GetAllProcesses()),
		"active_processes": len(h.orchestrator.GetActiveProcesses()),
	})
}
