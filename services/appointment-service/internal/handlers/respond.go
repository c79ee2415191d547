package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/homelube/libs/httpx"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/lifecycle"
)

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Success: false, Message: msg})
}

// fail maps lifecycle errors onto status codes. Storage and gateway details
// stay in the log.
func fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFound, fallback string) {
	var ve *lifecycle.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, lifecycle.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, lifecycle.ErrGateway):
		logger.ErrorContext(r.Context(), fallback, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		writeError(w, http.StatusBadGateway, fallback)
	default:
		logger.ErrorContext(r.Context(), fallback, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
