package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a purchasable item backed by a pool of redemption codes.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

// Combo bundles several products under a single price.
type Combo struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	ProductIDs []string        `json:"product_ids"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CodeStatus is the lifecycle state of a redemption code.
// The redeemed state is terminal: a code never reverts to active.
type CodeStatus string

const (
	CodeActive   CodeStatus = "active"
	CodeRedeemed CodeStatus = "redeemed"
)

// RedemptionCode is a single-use credential tied to a product.
// Created out-of-band by inventory load; only the allocator flips its
// status, and codes are never physically deleted.
type RedemptionCode struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"product_id"`
	Code       string     `json:"code"`
	Status     CodeStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
}
