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

// PlatformHandler exposes the platform catalog and its persisted config
// overrides.
type PlatformHandler struct {
	registry interfaces.RegistryService
	logger   arbor.ILogger
}

// NewPlatformHandler creates a new platform handler
func NewPlatformHandler(registry interfaces.RegistryService) *PlatformHandler {
	return &PlatformHandler{
		registry: registry,
		logger:   common.GetLogger(),
	}
}

// ListHandler returns enabled platforms in display order: GET /api/platforms
func (h *PlatformHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.registry.ListPlatforms())
}

// ListAllHandler returns the full annotated catalog: GET /api/platforms/all
func (h *PlatformHandler) ListAllHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.registry.ListAllPlatforms())
}

// UpdateConfigHandler applies a partial config update:
// PUT /api/platforms/{id}/config
func (h *PlatformHandler) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PUT") {
		return
	}

	platformID := pathSegment(r.URL.Path, "/api/platforms/", "/config")
	if platformID == "" {
		WriteError(w, http.StatusBadRequest, "Missing platform id")
		return
	}

	var update models.PlatformConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid config update: "+err.Error())
		return
	}

	if err := h.registry.UpdateConfig(r.Context(), platformID, update); err != nil {
		h.logger.Error().Err(err).Str("platform_id", platformID).Msg("Failed to update platform config")
		if strings.Contains(err.Error(), "unknown platform") {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(w, "Platform config updated")
}

// BulkUpdateHandler applies multiple config updates: POST /api/platforms/bulk
func (h *PlatformHandler) BulkUpdateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var updates map[string]models.PlatformConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid bulk update: "+err.Error())
		return
	}

	if err := h.registry.BulkUpdate(r.Context(), updates); err != nil {
		h.logger.Error().Err(err).Msg("Failed to bulk update platform configs")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(w, "Platform configs updated")
}

// ResetHandler removes all persisted overrides: POST /api/platforms/reset
func (h *PlatformHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.registry.ResetConfigs(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to reset platform configs")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(w, "Platform configs reset to defaults")
}
