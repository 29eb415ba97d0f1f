package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

type pgSaleRepository struct {
	pool *pgxpool.Pool
}

// NewPgSaleRepository returns a SaleRepository backed by PostgreSQL.
func NewPgSaleRepository(pool *pgxpool.Pool) SaleRepository {
	return &pgSaleRepository{pool: pool}
}

func (r *pgSaleRepository) Create(ctx context.Context, s *domain.Sale) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sales
			(id, buyer_name, buyer_phone, buyer_email, amount, status,
			 item_kind, item_id, correlation_id, origin, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.ID, s.BuyerName, s.BuyerPhone, s.BuyerEmail, s.Amount, s.Status,
		s.ItemKind, s.ItemID, s.CorrelationID, s.Origin, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (r *pgSaleRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `
		SELECT id, buyer_name, buyer_phone, buyer_email, amount, status,
		       item_kind, item_id, correlation_id, origin, created_at,
		       completed_at, fulfilled_at
		FROM sales WHERE correlation_id = $1`, correlationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

// CompleteOnce guards the transition on the current status so the
// completion side effects run at most once even when the provider
// redelivers the webhook.
func (r *pgSaleRepository) CompleteOnce(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sales SET status = 'completed', completed_at = $1
		WHERE id = $2 AND status = 'pending'`, at, id)
	if err != nil {
		return false, fmt.Errorf("complete sale: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgSaleRepository) MarkFulfilled(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sales SET fulfilled_at = $1 WHERE id = $2 AND fulfilled_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark sale fulfilled: %w", err)
	}
	return nil
}

func (r *pgSaleRepository) MarkExpired(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sales SET status = 'expired' WHERE id = $1 AND status = 'pending'`, id)
	return err
}

func (r *pgSaleRepository) FindOverduePending(ctx context.Context, cutoff time.Time) ([]*domain.Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, buyer_name, buyer_phone, buyer_email, amount, status,
		       item_kind, item_id, correlation_id, origin, created_at,
		       completed_at, fulfilled_at
		FROM sales
		WHERE status = 'pending' AND created_at <= $1
		LIMIT 500`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find overdue sales: %w", err)
	}
	defer rows.Close()

	var sales []*domain.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func scanSale(row pgx.Row) (*domain.Sale, error) {
	var s domain.Sale
	err := row.Scan(
		&s.ID, &s.BuyerName, &s.BuyerPhone, &s.BuyerEmail, &s.Amount, &s.Status,
		&s.ItemKind, &s.ItemID, &s.CorrelationID, &s.Origin, &s.CreatedAt,
		&s.CompletedAt, &s.FulfilledAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type pgAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPgAccountRepository returns an AccountRepository backed by PostgreSQL.
func NewPgAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &pgAccountRepository{pool: pool}
}

func (r *pgAccountRepository) Get(ctx context.Context, userID string) (*domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, balance FROM accounts WHERE user_id = $1`, userID,
	).Scan(&a.UserID, &a.Balance)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// Deduct keeps the balance check and the decrement in one statement so
// concurrent purchases can never drive the balance negative.
func (r *pgAccountRepository) Deduct(ctx context.Context, userID string, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET balance = balance - $1
		WHERE user_id = $2 AND balance >= $1`, amount, userID)
	if err != nil {
		return fmt.Errorf("deduct balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (r *pgAccountRepository) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = accounts.balance + $2`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}
