// Package settings holds the business configuration read by the lead pipeline.
// A Snapshot is loaded once per operation and passed explicitly to every component.
package settings

import "strings"

// AssignmentMode selects the primary assignment rule.
type AssignmentMode string

const (
	ModeManual       AssignmentMode = "manual"
	ModeSinglePerson AssignmentMode = "single_person"
	ModeSourceBased  AssignmentMode = "source_based"
	ModeRoundRobin   AssignmentMode = "round_robin"
)

// FallbackPolicy applies when the primary rule did not match.
type FallbackPolicy string

const (
	FallbackRoundRobin FallbackPolicy = "round_robin"
	FallbackUnassigned FallbackPolicy = "unassigned"
	FallbackPerson     FallbackPolicy = "person"
)

// SourceRule routes leads of one source to one employee.
type SourceRule struct {
	Source   string `json:"source"`
	AssignTo string `json:"assignTo"`
}

// AssignmentRules is the assignment-rule document.
type AssignmentRules struct {
	Mode           AssignmentMode `json:"mode"`
	DefaultPerson  string         `json:"defaultPerson,omitempty"`
	SourceRules    []SourceRule   `json:"sourceRules,omitempty"`
	Fallback       FallbackPolicy `json:"fallback,omitempty"`
	FallbackPerson string         `json:"fallbackPerson,omitempty"`
}

// MatchSource finds the rule for a lead source, comparing trimmed and case-insensitively.
func (r AssignmentRules) MatchSource(source string) (SourceRule, bool) {
	s := strings.TrimSpace(source)
	if s == "" {
		return SourceRule{}, false
	}
	for _, rule := range r.SourceRules {
		if strings.EqualFold(strings.TrimSpace(rule.Source), s) && strings.TrimSpace(rule.AssignTo) != "" {
			return rule, true
		}
	}
	return SourceRule{}, false
}

// AutomationRule is the per-source automation applied after assignment.
type AutomationRule struct {
	Source              string `json:"source"`
	ScheduleCallSameDay bool   `json:"scheduleCallSameDay"`
	AIHandling          bool   `json:"aiHandling"`
}

// Snapshot is the full business configuration at one point in time.
type Snapshot struct {
	Assignment   AssignmentRules     `json:"assignment"`
	Integrations IntegrationSettings `json:"integrations"`
	Automation   []AutomationRule    `json:"automation"`
}

// AutomationFor returns the automation rule for a source, if any.
func (s *Snapshot) AutomationFor(source string) (AutomationRule, bool) {
	src := strings.TrimSpace(source)
	for _, r := range s.Automation {
		if strings.EqualFold(strings.TrimSpace(r.Source), src) {
			return r, true
		}
	}
	return AutomationRule{}, false
}

// Defaults returns the configuration used when nothing is stored yet.
func Defaults() *Snapshot {
	return &Snapshot{
		Assignment: AssignmentRules{
			Mode:     ModeRoundRobin,
			Fallback: FallbackRoundRobin,
		},
		Integrations: IntegrationSettings{
			WhatsApp: WhatsAppSettings{
				GreetingTemplate: DefaultGreeting,
			},
		},
	}
}
