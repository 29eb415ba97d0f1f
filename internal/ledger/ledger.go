package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// rollingWindow is the trailing-window length for the rolling policy.
const rollingWindow = 60 * time.Second

// Snapshot is the read-only usage view served by the usage endpoint.
type Snapshot struct {
	RecipientID string `json:"recipient_id"`
	Known       bool   `json:"known"`
	Count       int    `json:"count"`
	Limit       int    `json:"limit"`
	Remaining   int    `json:"remaining"`
}

// Ledger decides whether a recipient may receive another message inside
// the current period, and records the send in the same store operation.
//
// Known recipients (present in the contacts registry) get the higher
// quota. The ledger fails closed: any store error denies the send.
type Ledger struct {
	usage    repository.UsageRepository
	contacts repository.ContactRepository
	policy   domain.WindowPolicy

	knownQuota   int
	unknownQuota int

	logger *zap.Logger
	now    func() time.Time
}

func New(
	usage repository.UsageRepository,
	contacts repository.ContactRepository,
	policy domain.WindowPolicy,
	knownQuota, unknownQuota int,
	logger *zap.Logger,
) *Ledger {
	return &Ledger{
		usage:        usage,
		contacts:     contacts,
		policy:       policy,
		knownQuota:   knownQuota,
		unknownQuota: unknownQuota,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Reserve classifies the recipient, then performs a single atomic
// reserve against the store: the quota check and the increment cannot
// interleave across concurrent callers.
//
// Any error from the store or the contact registry denies the send.
func (l *Ledger) Reserve(ctx context.Context, recipientID string) (domain.UsageDecision, error) {
	denied := domain.UsageDecision{Allowed: false, Remaining: 0}

	known, err := l.contacts.Exists(ctx, recipientID)
	if err != nil {
		l.logger.Warn("contact classification failed, denying send",
			zap.String("recipient", recipientID), zap.Error(err))
		return denied, err
	}

	limit := l.unknownQuota
	if known {
		limit = l.knownQuota
	}

	var decision *domain.UsageDecision
	switch l.policy {
	case domain.WindowRollingMinute:
		decision, err = l.usage.ReserveRolling(ctx, recipientID, rollingWindow, known, limit)
	default:
		decision, err = l.usage.ReservePeriod(ctx, recipientID, l.periodKey(), known, limit)
	}
	if err != nil {
		l.logger.Warn("usage reservation failed, denying send",
			zap.String("recipient", recipientID), zap.Error(err))
		return denied, err
	}

	return *decision, nil
}

// Usage returns the current-period snapshot for one recipient without
// reserving anything. A recipient with no record yet has the full quota.
func (l *Ledger) Usage(ctx context.Context, recipientID string) (*Snapshot, error) {
	known, err := l.contacts.Exists(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	limit := l.unknownQuota
	if known {
		limit = l.knownQuota
	}

	snap := &Snapshot{RecipientID: recipientID, Known: known, Limit: limit, Remaining: limit}

	// Each policy writes a different store: the day bucket keeps a
	// counter row, the rolling window keeps an event log.
	switch l.policy {
	case domain.WindowRollingMinute:
		count, err := l.usage.CountRolling(ctx, recipientID, rollingWindow)
		if err != nil {
			return nil, err
		}
		snap.Count = count
	default:
		rec, err := l.usage.Get(ctx, recipientID, l.periodKey())
		if err == domain.ErrNotFound {
			return snap, nil
		}
		if err != nil {
			return nil, err
		}
		snap.Count = rec.Count
	}

	snap.Remaining = limit - snap.Count
	if snap.Remaining < 0 {
		snap.Remaining = 0
	}
	return snap, nil
}

// periodKey buckets the current instant. Calendar days use the UTC
// date; the rolling policy never consults period keys.
func (l *Ledger) periodKey() string {
	return l.now().Format("2006-01-02")
}
