package lead

import (
	"strings"
	"time"
)

// Stage is the lead's position in the sales pipeline.
type Stage string

const (
	StageNew                Stage = "New"
	StageContacted          Stage = "Contacted"
	StageSiteVisitScheduled Stage = "Site Visit Scheduled"
	StageQuoted             Stage = "Quoted"
	StageBooked             Stage = "Booked"
	StageLost               Stage = "Lost"
)

// SourceWhatsAppInbound is the source given to leads created from an unknown inbound chat.
const SourceWhatsAppInbound = "WhatsApp Inbound"

// ParseStage matches a stage name case-insensitively.
func ParseStage(s string) (Stage, bool) {
	for _, st := range []Stage{StageNew, StageContacted, StageSiteVisitScheduled, StageQuoted, StageBooked, StageLost} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Lead is a prospective client inquiry.
// Assignee is empty while the lead is unassigned.
type Lead struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone,omitempty"` // local lookup form, e.g. 03001234567
	Email         string     `json:"email,omitempty"`
	Source        string     `json:"source"`
	Stage         Stage      `json:"stage"`
	Notes         string     `json:"notes,omitempty"`
	ExternalRef   string     `json:"externalRef,omitempty"`
	EventDate     *time.Time `json:"eventDate,omitempty"`
	GuestCount    int        `json:"guestCount,omitempty"`
	SiteVisitDate *time.Time `json:"siteVisitDate,omitempty"`

	Assignee         string     `json:"assignee,omitempty"`
	AssignmentMethod string     `json:"assignmentMethod,omitempty"`
	AssignedAt       *time.Time `json:"assignedAt,omitempty"`

	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	StageUpdatedAt  time.Time  `json:"stageUpdatedAt"`
	LastContactedAt *time.Time `json:"lastContactedAt,omitempty"`
	FirstResponseAt *time.Time `json:"firstResponseAt,omitempty"`
	GreetingSentAt  *time.Time `json:"greetingSentAt,omitempty"`
	NextFollowUpAt  *time.Time `json:"nextFollowUpAt,omitempty"`
	AIHandling      bool       `json:"aiHandling"`

	Reminded          bool `json:"reminded"`
	Escalated         bool `json:"escalated"`
	QuoteReminderSent bool `json:"quoteReminderSent"`

	LastMessagePreview   string     `json:"lastMessagePreview,omitempty"`
	LastMessageAt        *time.Time `json:"lastMessageAt,omitempty"`
	LastMessageDirection Direction  `json:"lastMessageDirection,omitempty"`
	HasUnreadMessages    bool       `json:"hasUnreadMessages"`
}

// IsAssigned reports whether the lead currently has an owner.
func (l *Lead) IsAssigned() bool {
	return strings.TrimSpace(l.Assignee) != ""
}

// LastActivity is the reference point for staleness: last contact, else creation.
func (l *Lead) LastActivity() time.Time {
	if l.LastContactedAt != nil {
		return *l.LastContactedAt
	}
	return l.CreatedAt
}

// Automation is the patch applied by a per-source automation rule.
type Automation struct {
	NextFollowUpAt *time.Time
	AIHandling     bool
}
