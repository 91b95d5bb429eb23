package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/backend"
	"github.com/CrowderSoup/task-tracker/models"
	"github.com/CrowderSoup/task-tracker/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps the error taxonomy to HTTP responses. Backend messages
// are passed through unchanged.
func writeError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	var remote *services.RemoteFailure

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": validation.Fields,
		})
	case errors.Is(err, services.ErrNotAuthenticated):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &remote):
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeMessage(w, status, remote.Message)
	default:
		log.Error().Err(err).Msg("unexpected error")
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

// decodeJSON ignores unknown fields, so owner fields sent by a client are dropped.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
