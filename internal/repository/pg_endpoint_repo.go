package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

type pgEndpointRepository struct {
	pool *pgxpool.Pool
}

// NewPgEndpointRepository returns an EndpointRepository backed by PostgreSQL.
func NewPgEndpointRepository(pool *pgxpool.Pool) EndpointRepository {
	return &pgEndpointRepository{pool: pool}
}

func (r *pgEndpointRepository) FindActive(ctx context.Context, event domain.EventType) ([]*domain.Endpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, url, events, active, created_at
		FROM endpoints
		WHERE active AND $1 = ANY(events)`, string(event))
	if err != nil {
		return nil, fmt.Errorf("find active endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []*domain.Endpoint
	for rows.Next() {
		var e domain.Endpoint
		var events []string
		if err := rows.Scan(&e.ID, &e.URL, &events, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		for _, s := range events {
			e.Events = append(e.Events, domain.EventType(s))
		}
		endpoints = append(endpoints, &e)
	}
	return endpoints, rows.Err()
}

func (r *pgEndpointRepository) LogDelivery(ctx context.Context, l *domain.DeliveryLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO delivery_logs (id, endpoint_id, event, http_status, response, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.ID, l.EndpointID, l.Event, l.HTTPStatus, l.Response, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}
