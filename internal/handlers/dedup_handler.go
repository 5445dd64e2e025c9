package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// DedupHandler exposes the handoff coordinator's operator operations.
type DedupHandler struct {
	dedup  interfaces.DedupService
	logger arbor.ILogger
}

// NewDedupHandler creates a new dedup handler
func NewDedupHandler(dedup interfaces.DedupService) *DedupHandler {
	return &DedupHandler{
		dedup:  dedup,
		logger: common.GetLogger(),
	}
}

// TriggerHandler forces a pipeline run: POST /api/dedup/trigger
func (h *DedupHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	WriteJSON(w, http.StatusOK, h.dedup.TriggerManual(r.Context()))
}

// StatusHandler reports coordinator state: GET /api/dedup/status
func (h *DedupHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.dedup.GetStatus())
}

// SetEnabledHandler toggles forwarding: PUT /api/dedup/enabled
func (h *DedupHandler) SetEnabledHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PUT") {
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.dedup.SetEnabled(body.Enabled)
	WriteJSON(w, http.StatusOK, h.dedup.GetStatus())
}
