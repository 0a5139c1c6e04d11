// -----------------------------------------------------------------------
// Document Handler - Upload, inspect, summarize and export documents
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
	"github.com/ternarybob/precis/internal/services/export"
	"github.com/ternarybob/precis/internal/services/orchestrator"
)

// maxUploadSize caps uploaded PDFs at 50 MiB
const maxUploadSize = 50 << 20

// DocumentHandler serves the document API
type DocumentHandler struct {
	store        interfaces.IDocumentStorage
	objects      interfaces.IObjectStorage
	orchestrator *orchestrator.Service
	exporter     *export.Service
	logger       arbor.ILogger
}

// NewDocumentHandler creates the document API handler
func NewDocumentHandler(store interfaces.IDocumentStorage, objects interfaces.IObjectStorage, orch *orchestrator.Service, exporter *export.Service, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		store:        store,
		objects:      objects,
		orchestrator: orch,
		exporter:     exporter,
		logger:       logger,
	}
}

// CollectionHandler serves /api/documents: POST uploads, GET lists
func (h *DocumentHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upload(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// StatsHandler serves GET /api/documents/stats
func (h *DocumentHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ItemHandler serves /api/documents/{id} and its sub-resources
func (h *DocumentHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id, rest := splitDocumentPath(r.URL.Path)
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.get(w, r, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.delete(w, r, id)
	case rest == "summaries" && r.Method == http.MethodPost:
		h.summarize(w, r, id)
	case rest == "summaries" && r.Method == http.MethodGet:
		h.listSummaries(w, r, id)
	case rest == "evaluations" && r.Method == http.MethodGet:
		h.listEvaluations(w, r, id)
	case rest == "report" && r.Method == http.MethodGet:
		h.report(w, r, id)
	case rest == "cancel" && r.Method == http.MethodPost:
		h.cancel(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown document route")
	}
}

func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF uploads are accepted")
		return
	}

	stored, err := h.objects.Save(r.Context(), file, interfaces.SaveOptions{
		ContentType:  "application/pdf",
		OriginalName: header.Filename,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	doc := &models.Document{
		ID:          common.NewDocumentID(),
		Filename:    header.Filename,
		Status:      models.DocumentStatusPending,
		SizeBytes:   stored.SizeBytes,
		StoragePath: stored.Path,
		CreatedAt:   stored.StoredAt,
		UpdatedAt:   stored.StoredAt,
	}
	if err := h.store.SaveDocument(r.Context(), doc); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.orchestrator.ProcessAsync(doc.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("document_id", doc.ID).
		Str("filename", doc.Filename).
		Int64("size_bytes", doc.SizeBytes).
		Msg("Document uploaded")
	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request) {
	opts := models.ListOptions{
		Status: models.DocumentStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	result, err := h.store.ListDocuments(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *DocumentHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	h.orchestrator.Cancel(id)
	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) summarize(w http.ResponseWriter, r *http.Request, id string) {
	var optsList []models.SummaryOptions
	if err := json.NewDecoder(r.Body).Decode(&optsList); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON array of summary options")
		return
	}
	if len(optsList) == 0 {
		optsList = []models.SummaryOptions{{Type: models.SummaryTypeDetailed}}
	}

	summaries, evals, err := h.orchestrator.Summarize(r.Context(), id, optsList)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summaries":   summaries,
		"evaluations": evals,
	})
}

func (h *DocumentHandler) listSummaries(w http.ResponseWriter, r *http.Request, id string) {
	summaries, err := h.store.ListSummaries(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *DocumentHandler) listEvaluations(w http.ResponseWriter, r *http.Request, id string) {
	evals, err := h.store.ListEvaluations(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

func (h *DocumentHandler) report(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	summaries, err := h.store.ListSummaries(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	evals, err := h.store.ListEvaluations(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data, err := h.exporter.RenderReport(doc, summaries, evals)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(doc.Filename)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *DocumentHandler) cancel(w http.ResponseWriter, r *http.Request, id string) {
	if !h.orchestrator.Cancel(id) {
		writeError(w, http.StatusNotFound, "no active task for document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// splitDocumentPath extracts the id and sub-resource from
// /api/documents/{id}[/{rest}]
func splitDocumentPath(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/api/documents/")
	parts := strings.SplitN(strings.Trim(trimmed, "/"), "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func reportFilename(original string) string {
	stem := strings.TrimSuffix(original, filepath.Ext(original))
	if stem == "" {
		stem = "document"
	}
	return stem + "-report.pdf"
}
