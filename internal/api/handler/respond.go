package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoRecipients),
		errors.Is(err, domain.ErrTooManyRecipients),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrInvalidChannel),
		errors.Is(err, domain.ErrMissingBuyer),
		errors.Is(err, domain.ErrAmbiguousItem),
		errors.Is(err, domain.ErrUnsupportedEvent):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrNoActiveCode),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrSaleNotPending):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrQueueFull):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
