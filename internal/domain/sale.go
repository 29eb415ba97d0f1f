package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus tracks the lifecycle of a purchase.
// A sale transitions pending -> completed exactly once, driven by the
// payment provider's completion event; overdue pending sales expire.
type SaleStatus string

const (
	SalePending   SaleStatus = "pending"
	SaleCompleted SaleStatus = "completed"
	SaleExpired   SaleStatus = "expired"
)

// ItemKind distinguishes a single-product sale from a combo sale.
type ItemKind string

const (
	ItemProduct ItemKind = "product"
	ItemCombo   ItemKind = "combo"
)

// Sale is one purchase, created when a charge is requested.
// CorrelationID round-trips through the payment provider's webhook to
// link the asynchronous confirmation back to this record.
type Sale struct {
	ID            string          `json:"id"`
	BuyerName     string          `json:"buyer_name"`
	BuyerPhone    string          `json:"buyer_phone"`
	BuyerEmail    string          `json:"buyer_email,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        SaleStatus      `json:"status"`
	ItemKind      ItemKind        `json:"item_kind"`
	ItemID        string          `json:"item_id"`
	CorrelationID string          `json:"correlation_id"`
	Origin        string          `json:"origin,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	// FulfilledAt is set once the sale's codes have been allocated and
	// handed to delivery. A completed sale with no fulfillment marker
	// means a prior attempt failed midway and must be resumed.
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
}

// CreateChargeRequest is the inbound payload for the charge endpoint.
// Exactly one of ProductID or ComboID must be set.
type CreateChargeRequest struct {
	BuyerName  string `json:"buyer_name"`
	BuyerPhone string `json:"buyer_phone"`
	BuyerEmail string `json:"buyer_email,omitempty"`
	ProductID  string `json:"product_id,omitempty"`
	ComboID    string `json:"combo_id,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

func (r *CreateChargeRequest) Validate() error {
	if r.BuyerName == "" || r.BuyerPhone == "" {
		return ErrMissingBuyer
	}
	if (r.ProductID == "") == (r.ComboID == "") {
		return ErrAmbiguousItem
	}
	return nil
}

// Account holds a buyer's prepaid balance, used by balance purchases.
type Account struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}
