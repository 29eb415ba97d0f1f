package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/relayhub/fanout-gateway/internal/api/middleware"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/purchase"
)

// ChargeHandler handles purchase endpoints: PIX charge creation and
// prepaid balance purchases.
type ChargeHandler struct {
	svc    *purchase.Service
	logger *zap.Logger
}

func NewChargeHandler(svc *purchase.Service, logger *zap.Logger) *ChargeHandler {
	return &ChargeHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/charges
//
// @Summary     Create a PIX charge for a product or combo
// @Tags        charges
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateChargeRequest  true  "Charge payload"
// @Success     201   {object}  purchase.ChargeReceipt
// @Failure     422   {object}  map[string]string
// @Failure     503   {object}  map[string]string
// @Router      /api/v1/charges [post]
func (h *ChargeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	receipt, err := h.svc.CreateCharge(r.Context(), req)
	if err != nil {
		h.logger.Warn("charge creation rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

type balancePurchaseRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id,omitempty"`
	ComboID   string `json:"combo_id,omitempty"`
}

// PurchaseWithBalance handles POST /api/v1/purchases/balance
//
// @Summary  Buy a product or combo with prepaid balance
// @Tags     charges
// @Accept   json
// @Produce  json
// @Success  200  {object}  map[string]any
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/purchases/balance [post]
func (h *ChargeHandler) PurchaseWithBalance(w http.ResponseWriter, r *http.Request) {
	var req balancePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	if (req.ProductID == "") == (req.ComboID == "") {
		mapError(w, domain.ErrAmbiguousItem)
		return
	}

	kind, itemID := domain.ItemProduct, req.ProductID
	if req.ComboID != "" {
		kind, itemID = domain.ItemCombo, req.ComboID
	}

	codes, err := h.svc.PurchaseWithBalance(r.Context(), req.UserID, kind, itemID)
	if err != nil {
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"codes": codes})
}
