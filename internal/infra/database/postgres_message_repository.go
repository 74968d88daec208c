package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"banquet_crm/internal/domain/lead"
)

type PostgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

// Append stores m unless a message with the same provider id is already stored.
// It reports whether a row was inserted.
func (r *PostgresMessageRepository) Append(ctx context.Context, m *lead.Message) (bool, error) {
	query := `INSERT INTO lead_messages (id, lead_id, direction, provider, external_id, text, media_url, sender_name, sent_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (provider, external_id) WHERE external_id <> '' DO NOTHING
	          RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.LeadID, string(m.Direction), m.Provider, m.ExternalID, m.Text, m.MediaURL, m.SenderName, m.SentAt,
	).Scan(&m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error appending lead message: %w", err)
	}
	return true, nil
}

func (r *PostgresMessageRepository) ListByLead(ctx context.Context, leadID string) ([]*lead.Message, error) {
	query := `SELECT id, lead_id, direction, provider, external_id, text, media_url, sender_name, sent_at, created_at
	          FROM lead_messages WHERE lead_id = $1 ORDER BY sent_at, created_at`
	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("error listing lead messages: %w", err)
	}
	defer rows.Close()

	var messages []*lead.Message
	for rows.Next() {
		var (
			m         lead.Message
			direction string
		)
		if err := rows.Scan(&m.ID, &m.LeadID, &direction, &m.Provider, &m.ExternalID, &m.Text,
			&m.MediaURL, &m.SenderName, &m.SentAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning lead message: %w", err)
		}
		m.Direction = lead.Direction(direction)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
