package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Field     string            `json:"field,omitempty"`
	Lines     []entity.Shortage `json:"lines,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// writeError maps domain errors to status codes. Anything unknown is a 500
// and is logged; its text is not sent to the client.
func writeError(w http.ResponseWriter, err error) {
	var (
		verr  *entity.ValidationError
		stock *entity.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: verr.Field})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Lines: stock.Lines})
	case errors.Is(err, entity.ErrCartChanged):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Retryable: true})
	case errors.Is(err, entity.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, entity.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case entity.IsRetryable(err):
		slog.Error("Backend unavailable", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "backend unavailable, please retry", Retryable: true})
	default:
		slog.Error("Request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
