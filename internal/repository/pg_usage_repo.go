package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

type pgUsageRepository struct {
	pool *pgxpool.Pool
}

// NewPgUsageRepository returns a UsageRepository backed by PostgreSQL.
func NewPgUsageRepository(pool *pgxpool.Pool) UsageRepository {
	return &pgUsageRepository{pool: pool}
}

// ReservePeriod: the increment and the limit check execute as one
// conditional upsert, so two concurrent callers can never both pass a
// check before either increments.
func (r *pgUsageRepository) ReservePeriod(ctx context.Context, recipientID, periodKey string, known bool, limit int) (*domain.UsageDecision, error) {
	if limit <= 0 {
		return &domain.UsageDecision{Allowed: false, Remaining: 0}, nil
	}

	var count int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO usage_records (recipient_id, period_key, count, known, updated_at)
		VALUES ($1, $2, 1, $3, NOW())
		ON CONFLICT (recipient_id, period_key)
		DO UPDATE SET count = usage_records.count + 1, updated_at = NOW()
		WHERE usage_records.count < $4
		RETURNING count`,
		recipientID, periodKey, known, limit,
	).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict row exists and its count already reached the limit.
		return &domain.UsageDecision{Allowed: false, Remaining: 0}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve period usage: %w", err)
	}

	return &domain.UsageDecision{Allowed: true, Remaining: limit - count}, nil
}

// ReserveRolling: guarded insert over the usage event log. The trailing
// count and the insert run in one statement.
func (r *pgUsageRepository) ReserveRolling(ctx context.Context, recipientID string, window time.Duration, known bool, limit int) (*domain.UsageDecision, error) {
	if limit <= 0 {
		return &domain.UsageDecision{Allowed: false, Remaining: 0}, nil
	}

	var prior int
	var inserted bool
	err := r.pool.QueryRow(ctx, `
		WITH current AS (
			SELECT COUNT(*) AS c FROM usage_events
			WHERE recipient_id = $1
			  AND created_at > NOW() - make_interval(secs => $2)
		), ins AS (
			INSERT INTO usage_events (recipient_id, known, created_at)
			SELECT $1, $3, NOW() FROM current WHERE c < $4
			RETURNING 1
		)
		SELECT current.c, EXISTS(SELECT 1 FROM ins) FROM current`,
		recipientID, window.Seconds(), known, limit,
	).Scan(&prior, &inserted)
	if err != nil {
		return nil, fmt.Errorf("reserve rolling usage: %w", err)
	}

	remaining := limit - prior
	if inserted {
		remaining--
	}
	if remaining < 0 {
		remaining = 0
	}
	return &domain.UsageDecision{Allowed: inserted, Remaining: remaining}, nil
}

func (r *pgUsageRepository) Get(ctx context.Context, recipientID, periodKey string) (*domain.UsageRecord, error) {
	var u domain.UsageRecord
	err := r.pool.QueryRow(ctx, `
		SELECT recipient_id, period_key, count, known, updated_at
		FROM usage_records
		WHERE recipient_id = $1 AND period_key = $2`,
		recipientID, periodKey,
	).Scan(&u.RecipientID, &u.PeriodKey, &u.Count, &u.Known, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get usage record: %w", err)
	}
	return &u, nil
}

func (r *pgUsageRepository) CountRolling(ctx context.Context, recipientID string, window time.Duration) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM usage_events
		WHERE recipient_id = $1
		  AND created_at > NOW() - make_interval(secs => $2)`,
		recipientID, window.Seconds(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rolling usage: %w", err)
	}
	return count, nil
}

type pgContactRepository struct {
	pool *pgxpool.Pool
}

// NewPgContactRepository returns a ContactRepository backed by PostgreSQL.
func NewPgContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &pgContactRepository{pool: pool}
}

func (r *pgContactRepository) Exists(ctx context.Context, recipientID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM contacts WHERE recipient_id = $1)`,
		recipientID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("contact lookup: %w", err)
	}
	return exists, nil
}
