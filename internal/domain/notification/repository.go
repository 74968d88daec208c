// internal/domain/notification/repository.go
package notification

import (
	"context"
)

// Repository defines operations for in-app notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// ListForRecipient returns notifications addressed to the user, to the user's role, or to all.
	ListForRecipient(ctx context.Context, userName, role string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead flips every unread notification visible to the recipient, including the
	// shared role/all ones, for every viewer.
	MarkAllRead(ctx context.Context, userName, role string) (int64, error)
}
