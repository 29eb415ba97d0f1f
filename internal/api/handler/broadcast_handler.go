package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/relayhub/fanout-gateway/internal/api/middleware"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/fanout"
)

// BroadcastHandler handles the many-recipient dispatch endpoint.
type BroadcastHandler struct {
	orch   *fanout.Orchestrator
	logger *zap.Logger
}

func NewBroadcastHandler(orch *fanout.Orchestrator, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{orch: orch, logger: logger}
}

// Create handles POST /api/v1/broadcast
//
// @Summary     Broadcast a message to up to 100 recipients
// @Tags        broadcast
// @Accept      json
// @Produce     json
// @Param       body  body      domain.BroadcastRequest  true  "Broadcast payload"
// @Success     200   {object}  domain.BroadcastSummary
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/broadcast [post]
func (h *BroadcastHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	summary, err := h.orch.Broadcast(r.Context(), req)
	if err != nil {
		h.logger.Warn("broadcast rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Int("recipients", len(req.Recipients)),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
