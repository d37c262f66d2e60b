package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dverna/wisp/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeErr maps domain sentinels onto HTTP statuses. Unrecognized
// errors are logged and reported as 500 without leaking detail.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrInvalidIdentity):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid identity"))
	case errors.Is(err, apperr.ErrZoomOutOfRange):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("zoom out of range"))
	case errors.Is(err, apperr.ErrSimulationNotReady):
		writeJSON(w, http.StatusConflict, errorBody("simulation not ready"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
