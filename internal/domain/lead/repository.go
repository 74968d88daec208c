package lead

import (
	"context"
	"time"
)

// Repository defines persistence operations for leads.
type Repository interface {
	// Create inserts a lead. A second lead with the same phone yields ErrDuplicatePhone
	// from the infra layer.
	Create(ctx context.Context, l *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	GetByPhone(ctx context.Context, phone string) (*Lead, error)

	SetAssignment(ctx context.Context, id, assignee, method string, at time.Time) error
	// CountNewByAssignee returns the number of leads in stage New per assignee name.
	CountNewByAssignee(ctx context.Context) (map[string]int, error)
	UpdateStage(ctx context.Context, id string, stage Stage, at time.Time) error
	ApplyAutomation(ctx context.Context, id string, a Automation) error
	RecordGreeting(ctx context.Context, id string, at time.Time) error
	// RecordActivity updates the last-message fields. Inbound marks unread; the first outbound
	// stamps FirstResponseAt and LastContactedAt once.
	RecordActivity(ctx context.Context, id string, a Activity) error

	ListByStages(ctx context.Context, stages []Stage) ([]*Lead, error)
	// Mark* set a one-way flag and report whether this call changed it.
	MarkReminded(ctx context.Context, id string) (bool, error)
	MarkEscalated(ctx context.Context, id string) (bool, error)
	MarkQuoteReminderSent(ctx context.Context, id string) (bool, error)
}

// MessageRepository stores the conversation log.
type MessageRepository interface {
	// Append reports false when the provider message id is already stored.
	Append(ctx context.Context, m *Message) (bool, error)
	ListByLead(ctx context.Context, leadID string) ([]*Message, error)
}
