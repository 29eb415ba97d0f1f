package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// ContactRepository is the trusted contact registry, consumed read-only.
// Presence decides the known/unknown quota classification.
type ContactRepository interface {
	Exists(ctx context.Context, recipientID string) (bool, error)
}

// UsageRepository owns usage records. Both reservation methods are
// atomic check-and-increment operations: the count never passes the
// limit even under concurrent callers.
type UsageRepository interface {
	// ReservePeriod reserves one send inside a fixed period bucket
	// (e.g. a UTC calendar day). A single conditional upsert.
	ReservePeriod(ctx context.Context, recipientID, periodKey string, known bool, limit int) (*domain.UsageDecision, error)

	// ReserveRolling reserves one send inside a trailing window of the
	// given length. Implemented as a guarded insert over an event log.
	ReserveRolling(ctx context.Context, recipientID string, window time.Duration, known bool, limit int) (*domain.UsageDecision, error)

	// Get returns the usage record for one period bucket, or ErrNotFound.
	Get(ctx context.Context, recipientID, periodKey string) (*domain.UsageRecord, error)

	// CountRolling returns the number of sends inside the trailing
	// window, for read-only snapshots under the rolling policy.
	CountRolling(ctx context.Context, recipientID string, window time.Duration) (int, error)
}

// MessageRepository owns the append-only message log.
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	List(ctx context.Context, f domain.MessageFilter) ([]*domain.Message, int, error)
}

// CatalogRepository owns products, combos, and redemption codes.
// Code allocation is a status-guarded update: concurrent allocations of
// the same last code yield exactly one winner.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetCombo(ctx context.Context, id string) (*domain.Combo, error)

	// AllocateCode flips the oldest active code of the product to
	// redeemed and returns it, or ErrNoActiveCode.
	AllocateCode(ctx context.Context, productID string) (*domain.RedemptionCode, error)

	// AllocateCodes allocates one code per product inside a single
	// transaction. Any product without an active code aborts the whole
	// allocation with ErrNoActiveCode; nothing stays redeemed.
	AllocateCodes(ctx context.Context, productIDs []string) ([]*domain.RedemptionCode, error)
}

// SaleRepository owns purchase records.
type SaleRepository interface {
	Create(ctx context.Context, s *domain.Sale) error
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Sale, error)

	// CompleteOnce transitions pending -> completed. Returns false when
	// the sale was not pending (already completed or expired), so the
	// transition happens at most once across concurrent webhooks.
	CompleteOnce(ctx context.Context, id string, at time.Time) (bool, error)

	// MarkFulfilled records that the sale's codes were allocated and
	// handed to delivery, closing the resume window for redelivered
	// completion events.
	MarkFulfilled(ctx context.Context, id string, at time.Time) error

	MarkExpired(ctx context.Context, id string) error
	FindOverduePending(ctx context.Context, cutoff time.Time) ([]*domain.Sale, error)
}

// AccountRepository owns prepaid balances.
type AccountRepository interface {
	Get(ctx context.Context, userID string) (*domain.Account, error)

	// Deduct decrements the balance only while it covers the amount;
	// returns ErrInsufficientBalance otherwise.
	Deduct(ctx context.Context, userID string, amount decimal.Decimal) error

	Credit(ctx context.Context, userID string, amount decimal.Decimal) error
}

// EndpointRepository owns subscriber webhook endpoints and their
// delivery logs.
type EndpointRepository interface {
	FindActive(ctx context.Context, event domain.EventType) ([]*domain.Endpoint, error)
	LogDelivery(ctx context.Context, l *domain.DeliveryLog) error
}
