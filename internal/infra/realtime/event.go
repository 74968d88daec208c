package realtime

import (
	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/notification"
)

const TypeNewLead = "new_lead"

// NewLeadEvent is pushed to every connected client when a lead is created.
type NewLeadEvent struct {
	Type         string                     `json:"type"`
	Lead         *lead.Lead                 `json:"lead"`
	Notification *notification.Notification `json:"notification,omitempty"`
}

func NewLead(l *lead.Lead, n *notification.Notification) NewLeadEvent {
	return NewLeadEvent{Type: TypeNewLead, Lead: l, Notification: n}
}
