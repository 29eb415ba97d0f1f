package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

type pgMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPgMessageRepository returns a MessageRepository backed by PostgreSQL.
func NewPgMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &pgMessageRepository{pool: pool}
}

func (r *pgMessageRepository) Create(ctx context.Context, m *domain.Message) error {
	var buttons []byte
	if m.Buttons != nil {
		b, err := json.Marshal(m.Buttons)
		if err != nil {
			return fmt.Errorf("marshal buttons: %w", err)
		}
		buttons = b
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages
			(id, recipient, channel, body, image_url, buttons, status,
			 error_code, error_detail, provider_msg_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.Recipient, m.Channel, m.Body, m.ImageURL, buttons, m.Status,
		m.ErrorCode, m.ErrorDetail, m.ProviderMsgID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) List(ctx context.Context, f domain.MessageFilter) ([]*domain.Message, int, error) {
	where, args := buildMessageWhere(f)
	offset := (f.Page - 1) * f.Limit

	// Count total matching rows for pagination metadata.
	var total int
	countQuery := "SELECT COUNT(*) FROM messages" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	// Append pagination args after the WHERE args.
	args = append(args, f.Limit, offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT id, recipient, channel, body, image_url, buttons, status,
		       error_code, error_detail, provider_msg_id, created_at
		FROM messages%s
		ORDER BY created_at DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

// ---- helpers ----

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	var buttons []byte
	err := row.Scan(
		&m.ID, &m.Recipient, &m.Channel, &m.Body, &m.ImageURL, &buttons,
		&m.Status, &m.ErrorCode, &m.ErrorDetail, &m.ProviderMsgID, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(buttons) > 0 {
		if err := json.Unmarshal(buttons, &m.Buttons); err != nil {
			return nil, fmt.Errorf("unmarshal buttons: %w", err)
		}
	}
	return &m, nil
}

// buildMessageWhere builds a parameterised WHERE clause from a MessageFilter.
func buildMessageWhere(f domain.MessageFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Channel != nil {
		add("channel = $%d", *f.Channel)
	}
	if f.Recipient != nil {
		add("recipient = $%d", *f.Recipient)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
