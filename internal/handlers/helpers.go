package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/precis/internal/common"
)

// writeJSON serializes a payload with the right content type
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends a plain error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps typed engine errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	var typed *common.Error
	if errors.As(err, &typed) {
		writeJSON(w, typed.Kind.HTTPStatus(), map[string]string{
			"error": typed.Message,
			"kind":  string(typed.Kind),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
