package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/ledger"
)

// UsageHandler exposes per-recipient quota snapshots.
type UsageHandler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewUsageHandler(l *ledger.Ledger, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{ledger: l, logger: logger}
}

// Get handles GET /api/v1/usage/{recipient}
//
// @Summary  Current usage and remaining quota for one recipient
// @Tags     usage
// @Produce  json
// @Param    recipient  path      string  true  "Recipient identifier"
// @Success  200        {object}  ledger.Snapshot
// @Router   /api/v1/usage/{recipient} [get]
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipient := chi.URLParam(r, "recipient")
	snap, err := h.ledger.Usage(r.Context(), recipient)
	if err != nil {
		h.logger.Error("usage lookup failed",
			zap.String("recipient", recipient), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
