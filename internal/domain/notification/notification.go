package notification

import "time"

// Notification is an in-app alert. It is immutable apart from its read state.
type Notification struct {
	ID        string     `json:"id"`
	Type      Type       `json:"type"`
	Target    Target     `json:"target"`
	Message   string     `json:"message"`
	LeadID    string     `json:"leadId,omitempty"`
	Priority  Priority   `json:"priority"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}
