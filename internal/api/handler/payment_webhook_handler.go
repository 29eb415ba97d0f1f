package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/payment"
	"github.com/relayhub/fanout-gateway/internal/purchase"
)

// PaymentWebhookHandler receives the payment provider's callbacks.
type PaymentWebhookHandler struct {
	svc    *purchase.Service
	logger *zap.Logger
}

func NewPaymentWebhookHandler(svc *purchase.Service, logger *zap.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{svc: svc, logger: logger}
}

// Receive handles POST /api/v1/webhooks/payment
//
// The provider redelivers on non-2xx, so transient failures return 500
// to request a retry, while events we can never process (unknown type,
// unknown correlation) are acknowledged to stop the redelivery loop.
func (h *PaymentWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var evt payment.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.svc.HandlePaymentEvent(r.Context(), &evt)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, domain.ErrUnsupportedEvent):
		h.logger.Info("ignoring unsupported payment event", zap.String("event", evt.Event))
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	case errors.Is(err, domain.ErrNotFound):
		h.logger.Warn("payment event for unknown sale",
			zap.String("event", evt.Event),
			zap.String("correlation_id", evt.Charge.CorrelationID),
		)
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	default:
		h.logger.Error("payment event processing failed",
			zap.String("event", evt.Event), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "processing failed")
	}
}
