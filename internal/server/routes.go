package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - live progress stream (?documentId=...)
	mux.HandleFunc("/ws/progress", s.app.ProgressHandler.HandleProgress)

	// API routes - Documents
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.CollectionHandler)
	mux.HandleFunc("/api/documents/stats", s.app.DocumentHandler.StatsHandler)
	mux.HandleFunc("/api/documents/", s.app.DocumentHandler.ItemHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	return mux
}
