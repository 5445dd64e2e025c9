package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ScraperHandler exposes scraper trigger, kill and process inspection
// operations.
type ScraperHandler struct {
	orchestrator interfaces.OrchestratorService
	logger       arbor.ILogger
}

// NewScraperHandler creates a new scraper handler
func NewScraperHandler(orchestrator interfaces.OrchestratorService) *ScraperHandler {
	return &ScraperHandler{
		orchestrator: orchestrator,
		logger:       common.GetLogger(),
	}
}

// TriggerHandler starts a scraper run: POST /api/scrapers/{id}/trigger.
// Validation failures come back as 200 with success=false so UI layers can
// render them inline.
func (h *ScraperHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	platformID := pathSegment(r.URL.Path, "/api/scrapers/", "/trigger")
	if platformID == "" {
		WriteError(w, http.StatusBadRequest, "Missing platform id")
		return
	}

	var opts models.TriggerOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid trigger options: "+err.Error())
			return
		}
	}

	result := h.orchestrator.Trigger(platformID, opts)
	if !result.Success {
		h.logger.Warn().
			Str("platform_id", platformID).
			Str("error", result.Error).
			Msg("Scraper trigger rejected")
	}

	WriteJSON(w, http.StatusOK, result)
}

// KillHandler terminates a running process: POST /api/processes/{id}/kill
func (h *ScraperHandler) KillHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	processID := pathSegment(r.URL.Path, "/api/processes/", "/kill")
	if processID == "" {
		WriteError(w, http.StatusBadRequest, "Missing process id")
		return
	}

	killed := h.orchestrator.Kill(processID)
	WriteJSON(w, http.StatusOK, map[string]bool{"killed": killed})
}

// ListHandler returns all tracked process records: GET /api/processes
func (h *ScraperHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.orchestrator.GetAllProcesses())
}

// ActiveHandler returns running process records: GET /api/processes/active
func (h *ScraperHandler) ActiveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.orchestrator.GetActiveProcesses())
}

// StatusHandler returns one process record: GET /api/processes/{id}
func (h *ScraperHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	processID := strings.TrimPrefix(r.URL.Path, "/api/processes/")
	if processID == "" || strings.Contains(processID, "/") {
		WriteError(w, http.StatusBadRequest, "Missing process id")
		return
	}

	record, ok := h.orchestrator.GetProcess(processID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Process not found")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// pathSegment extracts the variable segment between a prefix and suffix.
func pathSegment(path, prefix, suffix string) string {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	segment := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if strings.Contains(segment, "/") {
		return ""
	}
	return segment
}
