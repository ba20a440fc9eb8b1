package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/homesync/internal/device"
	"github.com/dukerupert/homesync/internal/syncerr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCommandError maps a command failure to a status code. The outcome is
// already on the action log; the response only tells the caller it failed.
func writeCommandError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var writeErr *syncerr.WriteError
	var validationErr *syncerr.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, device.ErrUnknownDevice):
		writeError(w, http.StatusNotFound, "device not found")
	case errors.As(err, &writeErr):
		logger.Warn(op, "error", err)
		writeError(w, http.StatusBadGateway, "failed to "+op)
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
