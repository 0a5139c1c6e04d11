package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
)

// APIHandler serves version and health endpoints
type APIHandler struct {
	objects interfaces.IObjectStorage
	llm     interfaces.ILLMManager
	logger  arbor.ILogger
}

// NewAPIHandler creates the system API handler
func NewAPIHandler(objects interfaces.IObjectStorage, llm interfaces.ILLMManager, logger arbor.ILogger) *APIHandler {
	return &APIHandler{objects: objects, llm: llm, logger: logger}
}

// VersionHandler serves GET /api/version
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": common.Version,
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// HealthHandler serves GET /api/health
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	health := map[string]string{"status": "healthy"}

	if err := h.objects.Health(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		health["status"] = "degraded"
		health["storage"] = err.Error()
	}

	if _, err := h.llm.ActiveProvider(); err != nil {
		health["llm"] = err.Error()
	}

	writeJSON(w, status, health)
}
