package app

import (
	"context"
	"fmt"
	"strings"

	"banquet_crm/internal/domain/employee"
	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/settings"
)

// Method records which rule produced an assignment.
type Method string

const (
	MethodManual         Method = "manual"
	MethodSinglePerson   Method = "single_person"
	MethodSourceBased    Method = "source_based"
	MethodFallbackPerson Method = "fallback_person"
	MethodRoundRobin     Method = "round_robin"
	MethodUnassigned     Method = "unassigned"
)

// Decision is the engine's answer. Assignee is empty when the lead stays unassigned.
type Decision struct {
	Assignee string
	Method   Method
}

// Assign picks the owner of a lead. The first matching rule wins:
// manual mode, single person, source rule, then the fallback policy.
// It is pure; the directory must be in directory order for round-robin ties.
func Assign(l *lead.Lead, rules settings.AssignmentRules, directory []*employee.Employee, newLeadCounts map[string]int) Decision {
	d, needsDirectory := applyRules(l, rules)
	if needsDirectory {
		return roundRobin(directory, newLeadCounts)
	}
	return d
}

// applyRules resolves every rule that does not depend on the directory.
// needsDirectory is true when the decision falls through to round robin.
func applyRules(l *lead.Lead, rules settings.AssignmentRules) (d Decision, needsDirectory bool) {
	if l.IsAssigned() {
		m := Method(l.AssignmentMethod)
		if m == "" {
			m = MethodManual
		}
		return Decision{Assignee: l.Assignee, Method: m}, false
	}

	switch rules.Mode {
	case settings.ModeManual:
		return Decision{Method: MethodManual}, false
	case settings.ModeSinglePerson:
		if p := strings.TrimSpace(rules.DefaultPerson); p != "" {
			return Decision{Assignee: p, Method: MethodSinglePerson}, false
		}
	case settings.ModeSourceBased:
		if rule, ok := rules.MatchSource(l.Source); ok {
			return Decision{Assignee: strings.TrimSpace(rule.AssignTo), Method: MethodSourceBased}, false
		}
	case settings.ModeRoundRobin, "":
		return Decision{}, true
	}

	switch rules.Fallback {
	case settings.FallbackUnassigned:
		return Decision{Method: MethodUnassigned}, false
	case settings.FallbackPerson:
		if p := strings.TrimSpace(rules.FallbackPerson); p != "" {
			return Decision{Assignee: p, Method: MethodFallbackPerson}, false
		}
	}
	return Decision{}, true
}

// roundRobin picks the eligible employee with the fewest New leads; the first one wins ties.
func roundRobin(directory []*employee.Employee, newLeadCounts map[string]int) Decision {
	counts := make(map[string]int, len(newLeadCounts))
	for name, n := range newLeadCounts {
		counts[nameKey(name)] += n
	}

	var (
		best      *employee.Employee
		bestCount int
	)
	for _, e := range directory {
		if !e.Assignable() {
			continue
		}
		c := counts[nameKey(e.Name)]
		if best == nil || c < bestCount {
			best, bestCount = e, c
		}
	}
	if best == nil {
		return Decision{Method: MethodUnassigned}
	}
	return Decision{Assignee: best.Name, Method: MethodRoundRobin}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AssignmentEngine reads the directory and workload fresh for every decision.
type AssignmentEngine struct {
	employees employee.Repository
	leads     lead.Repository
}

func NewAssignmentEngine(er employee.Repository, lr lead.Repository) *AssignmentEngine {
	return &AssignmentEngine{employees: er, leads: lr}
}

// Decide loads the directory and workload only when the rules fall through to round robin.
func (e *AssignmentEngine) Decide(ctx context.Context, l *lead.Lead, rules settings.AssignmentRules) (Decision, error) {
	if d, needsDirectory := applyRules(l, rules); !needsDirectory {
		return d, nil
	}

	directory, err := e.employees.ListByRoles(ctx, employee.AssignableRoles)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to list assignable employees: %w", err)
	}
	counts, err := e.leads.CountNewByAssignee(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count new leads per employee: %w", err)
	}
	return Assign(l, rules, directory, counts), nil
}
