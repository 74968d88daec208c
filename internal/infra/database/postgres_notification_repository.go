// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"banquet_crm/internal/domain/notification"
)

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `INSERT INTO notifications (id, type, target_kind, target_value, message, lead_id, priority, is_read, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, string(n.Type), string(n.Target.Kind), n.Target.Value, n.Message,
		nullString(n.LeadID), string(n.Priority), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

// recipientFilter selects notifications visible to a user: addressed to them, to their role, or to all.
const recipientFilter = `(target_kind = 'all'
	OR (target_kind = 'user' AND LOWER(target_value) = LOWER($1))
	OR (target_kind = 'role' AND LOWER(target_value) = LOWER($2)))`

func (r *PostgresNotificationRepository) ListForRecipient(ctx context.Context, userName, role string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, type, target_kind, target_value, message, COALESCE(lead_id::text, ''), priority, is_read, created_at, read_at
	          FROM notifications
	          WHERE ` + recipientFilter + `
	          ORDER BY created_at DESC
	          LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, userName, role, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	defer rows.Close()

	var list []*notification.Notification
	for rows.Next() {
		var (
			n                   notification.Notification
			typ, kind, priority string
			readAt              sql.NullTime
		)
		if err := rows.Scan(&n.ID, &typ, &kind, &n.Target.Value, &n.Message, &n.LeadID, &priority, &n.Read, &n.CreatedAt, &readAt); err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		n.Type = notification.Type(typ)
		n.Target.Kind = notification.TargetKind(kind)
		n.Priority = notification.Priority(priority)
		n.ReadAt = timePtr(readAt)
		list = append(list, &n)
	}
	return list, rows.Err()
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, NOW()) WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead keeps the shared-row semantics: role and all notifications become read for everyone.
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userName, role string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE is_read = FALSE AND `+recipientFilter,
		userName, role)
	if err != nil {
		return 0, fmt.Errorf("error marking all notifications read: %w", err)
	}
	return res.RowsAffected()
}
