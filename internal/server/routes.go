package server

import (
	"fmt"
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Application status
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// API routes - Platform catalog and config
	mux.HandleFunc("/api/platforms", s.app.PlatformHandler.ListHandler)
	mux.HandleFunc("/api/platforms/all", s.app.PlatformHandler.ListAllHandler)
	mux.HandleFunc("/api/platforms/reset", s.app.PlatformHandler.ResetHandler)
	mux.HandleFunc("/api/platforms/bulk", s.app.PlatformHandler.BulkUpdateHandler)
	mux.HandleFunc("/api/platforms/", s.handlePlatformRoutes) // PUT /{id}/config

	// API routes - Scraper triggers and process table
	mux.HandleFunc("/api/scrapers/", s.handleScraperRoutes) // POST /{id}/trigger
	mux.HandleFunc("/api/processes", s.app.ScraperHandler.ListHandler)
	mux.HandleFunc("/api/processes/active", s.app.ScraperHandler.ActiveHandler)
	mux.HandleFunc("/api/processes/", s.handleProcessRoutes) // GET /{id}, POST /{id}/kill

	// API routes - Deduplication handoff
	mux.HandleFunc("/api/dedup/trigger", s.app.DedupHandler.TriggerHandler)
	mux.HandleFunc("/api/dedup/status", s.app.DedupHandler.StatusHandler)
	mux.HandleFunc("/api/dedup/enabled", s.app.DedupHandler.SetEnabledHandler)

	return mux
}

// handlePlatformRoutes dispatches /api/platforms/{id}/config
func (s *Server) handlePlatformRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/config") {
		s.app.PlatformHandler.UpdateConfigHandler(w, r)
		return
	}
	http.NotFound(w, r)
}

// handleScraperRoutes dispatches /api/scrapers/{id}/trigger
func (s *Server) handleScraperRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/trigger") {
		s.app.ScraperHandler.TriggerHandler(w, r)
		return
	}
	http.NotFound(w, r)
}

// handleProcessRoutes dispatches /api/processes/{id} and
// /api/processes/{id}/kill
func (s *Server) handleProcessRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/kill") {
		s.app.ScraperHandler.KillHandler(w, r)
		return
	}
	s.app.ScraperHandler.StatusHandler(w, r)
}
