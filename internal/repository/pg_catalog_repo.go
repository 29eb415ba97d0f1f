package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

type pgCatalogRepository struct {
	pool *pgxpool.Pool
}

// NewPgCatalogRepository returns a CatalogRepository backed by PostgreSQL.
func NewPgCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &pgCatalogRepository{pool: pool}
}

func (r *pgCatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, value, created_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Value, &p.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *pgCatalogRepository) GetCombo(ctx context.Context, id string) (*domain.Combo, error) {
	var c domain.Combo
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, value, product_ids, created_at FROM combos WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Value, &c.ProductIDs, &c.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get combo: %w", err)
	}
	return &c, nil
}

// allocateQuery flips the oldest active code for a product to redeemed.
// The subselect locks the chosen row (SKIP LOCKED) so a concurrent
// allocation moves on to the next code instead of double-selecting.
const allocateQuery = `
	UPDATE codes SET status = 'redeemed', redeemed_at = NOW()
	WHERE id = (
		SELECT id FROM codes
		WHERE product_id = $1 AND status = 'active'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, product_id, code, status, created_at, redeemed_at`

func (r *pgCatalogRepository) AllocateCode(ctx context.Context, productID string) (*domain.RedemptionCode, error) {
	c, err := scanCode(r.pool.QueryRow(ctx, allocateQuery, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoActiveCode
	}
	if err != nil {
		return nil, fmt.Errorf("allocate code: %w", err)
	}
	return c, nil
}

func (r *pgCatalogRepository) AllocateCodes(ctx context.Context, productIDs []string) ([]*domain.RedemptionCode, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	codes := make([]*domain.RedemptionCode, 0, len(productIDs))
	for _, productID := range productIDs {
		c, err := scanCode(tx.QueryRow(ctx, allocateQuery, productID))
		if errors.Is(err, pgx.ErrNoRows) {
			// Rollback undoes the codes already flipped in this call.
			return nil, domain.ErrNoActiveCode
		}
		if err != nil {
			return nil, fmt.Errorf("allocate combo code: %w", err)
		}
		codes = append(codes, c)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}
	return codes, nil
}

func scanCode(row pgx.Row) (*domain.RedemptionCode, error) {
	var c domain.RedemptionCode
	err := row.Scan(&c.ID, &c.ProductID, &c.Code, &c.Status, &c.CreatedAt, &c.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
