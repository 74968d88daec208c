// internal/domain/notification/shared_types.go
package notification

// Type identifies why a notification was raised.
type Type string

const (
	TypeLeadAssigned        Type = "lead_assigned"
	TypeStaleLeadReminder   Type = "stale_lead_reminder"
	TypeStaleLeadEscalation Type = "stale_lead_escalation"
	TypeSiteVisitReminder   Type = "site_visit_reminder"
	TypeQuoteFollowUp       Type = "quote_follow_up"
	TypePaymentOverdue      Type = "payment_overdue"
)

// Priority orders notifications in the UI.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority returns the priority a notification type is raised with.
func DefaultPriority(t Type) Priority {
	switch t {
	case TypeStaleLeadEscalation, TypePaymentOverdue:
		return PriorityHigh
	case TypeStaleLeadReminder, TypeQuoteFollowUp:
		return PriorityMedium
	default:
		return PriorityNormal
	}
}

// TargetKind says how Target.Value is interpreted.
type TargetKind string

const (
	TargetUser TargetKind = "user"
	TargetRole TargetKind = "role"
	TargetAll  TargetKind = "all"
)

// Target is the audience of a notification: one user, everyone with a role, or everyone.
type Target struct {
	Kind  TargetKind `json:"kind"`
	Value string     `json:"value,omitempty"`
}

func ToUser(name string) Target { return Target{Kind: TargetUser, Value: name} }
func ToRole(role string) Target { return Target{Kind: TargetRole, Value: role} }
func ToAll() Target             { return Target{Kind: TargetAll} }
