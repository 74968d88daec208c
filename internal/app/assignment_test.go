package app

import (
	"context"
	"math/rand"
	"testing"

	"banquet_crm/internal/domain/employee"
	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign(t *testing.T) {
	dir := defaultEmployees()
	tests := []struct {
		name   string
		lead   *lead.Lead
		rules  settings.AssignmentRules
		counts map[string]int
		want   Decision
	}{
		{
			name:  "manual mode leaves lead unassigned",
			lead:  &lead.Lead{Source: "Facebook"},
			rules: settings.AssignmentRules{Mode: settings.ModeManual, Fallback: settings.FallbackRoundRobin},
			want:  Decision{Method: MethodManual},
		},
		{
			name:  "single person",
			lead:  &lead.Lead{},
			rules: settings.AssignmentRules{Mode: settings.ModeSinglePerson, DefaultPerson: " Omar "},
			want:  Decision{Assignee: "Omar", Method: MethodSinglePerson},
		},
		{
			name:  "single person without default falls back to round robin",
			lead:  &lead.Lead{},
			rules: settings.AssignmentRules{Mode: settings.ModeSinglePerson},
			want:  Decision{Assignee: "Ali", Method: MethodRoundRobin},
		},
		{
			name: "source rule matches trimmed and case-insensitive",
			lead: &lead.Lead{Source: "Facebook"},
			rules: settings.AssignmentRules{
				Mode:        settings.ModeSourceBased,
				SourceRules: []settings.SourceRule{{Source: "instagram", AssignTo: "Sana"}, {Source: " facebook ", AssignTo: "Ali"}},
			},
			want: Decision{Assignee: "Ali", Method: MethodSourceBased},
		},
		{
			name: "no source match with unassigned fallback",
			lead: &lead.Lead{Source: "Walk-in"},
			rules: settings.AssignmentRules{
				Mode:        settings.ModeSourceBased,
				SourceRules: []settings.SourceRule{{Source: "facebook", AssignTo: "Ali"}},
				Fallback:    settings.FallbackUnassigned,
			},
			want: Decision{Method: MethodUnassigned},
		},
		{
			name: "no source match with fallback person",
			lead: &lead.Lead{Source: "Walk-in"},
			rules: settings.AssignmentRules{
				Mode:           settings.ModeSourceBased,
				Fallback:       settings.FallbackPerson,
				FallbackPerson: "Sana",
			},
			want: Decision{Assignee: "Sana", Method: MethodFallbackPerson},
		},
		{
			name:   "no source match falls back to round robin",
			lead:   &lead.Lead{Source: "Walk-in"},
			rules:  settings.AssignmentRules{Mode: settings.ModeSourceBased, Fallback: settings.FallbackRoundRobin},
			counts: map[string]int{"Ali": 3, "Sana": 1, "Omar": 2},
			want:   Decision{Assignee: "Sana", Method: MethodRoundRobin},
		},
		{
			name:   "round robin ties go to directory order",
			lead:   &lead.Lead{},
			rules:  settings.AssignmentRules{Mode: settings.ModeRoundRobin},
			counts: map[string]int{"Ali": 2, "Sana": 1, "Omar": 1, "Unassigned": 0, "Maryam": 0},
			want:   Decision{Assignee: "Sana", Method: MethodRoundRobin},
		},
		{
			name:   "round robin ignores count key casing",
			lead:   &lead.Lead{},
			rules:  settings.AssignmentRules{Mode: settings.ModeRoundRobin},
			counts: map[string]int{"ali": 1, "SANA": 1},
			want:   Decision{Assignee: "Omar", Method: MethodRoundRobin},
		},
		{
			name:  "already assigned lead is left alone",
			lead:  &lead.Lead{Assignee: "Omar", AssignmentMethod: string(MethodSourceBased)},
			rules: settings.AssignmentRules{Mode: settings.ModeRoundRobin},
			want:  Decision{Assignee: "Omar", Method: MethodSourceBased},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assign(tt.lead, tt.rules, dir, tt.counts))
		})
	}
}

func TestAssignRoundRobinWithoutEligibleEmployees(t *testing.T) {
	dir := []*employee.Employee{
		{Name: "Unassigned", Role: employee.RoleSales, IsActive: true},
		{Name: "Maryam", Role: employee.RoleManager, IsActive: true},
		{Name: "Bilal", Role: employee.RoleSales, IsActive: false},
	}
	d := Assign(&lead.Lead{}, settings.AssignmentRules{Mode: settings.ModeRoundRobin}, dir, nil)
	assert.Equal(t, Decision{Method: MethodUnassigned}, d)
}

// The chosen employee never has more New leads than any other eligible employee.
func TestAssignRoundRobinPicksMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"A", "B", "C", "D", "E", "F"}
	var dir []*employee.Employee
	for _, n := range names {
		dir = append(dir, &employee.Employee{Name: n, Role: employee.RoleSales, IsActive: true})
	}

	for i := 0; i < 200; i++ {
		counts := make(map[string]int)
		for _, n := range names {
			counts[n] = rng.Intn(5)
		}
		d := Assign(&lead.Lead{}, settings.AssignmentRules{Mode: settings.ModeRoundRobin}, dir, counts)
		require.Equal(t, MethodRoundRobin, d.Method)
		for _, n := range names {
			assert.LessOrEqual(t, counts[d.Assignee], counts[n])
		}
	}
}

// After assignment a lead has an owner unless the rules say manual or unassigned.
func TestAssignOwnerXorManualOrUnassigned(t *testing.T) {
	dir := defaultEmployees()
	modes := []settings.AssignmentMode{settings.ModeManual, settings.ModeSinglePerson, settings.ModeSourceBased, settings.ModeRoundRobin}
	fallbacks := []settings.FallbackPolicy{settings.FallbackRoundRobin, settings.FallbackUnassigned, settings.FallbackPerson}
	for _, m := range modes {
		for _, fb := range fallbacks {
			rules := settings.AssignmentRules{Mode: m, Fallback: fb, FallbackPerson: "Omar"}
			d := Assign(&lead.Lead{Source: "Referral"}, rules, dir, nil)
			unowned := d.Method == MethodManual || d.Method == MethodUnassigned
			assert.True(t, (d.Assignee != "") != unowned, "mode=%s fallback=%s got %+v", m, fb, d)
		}
	}
}

func TestAssignmentEngineDecide(t *testing.T) {
	f := newFixture(
		&lead.Lead{ID: "l1", Stage: lead.StageNew, Assignee: "Ali"},
		&lead.Lead{ID: "l2", Stage: lead.StageNew, Assignee: "Ali"},
		&lead.Lead{ID: "l3", Stage: lead.StageContacted, Assignee: "Sana"},
		&lead.Lead{ID: "l4", Stage: lead.StageNew, Assignee: "Sana"},
	)

	d, err := f.engine.Decide(context.Background(), &lead.Lead{}, settings.AssignmentRules{Mode: settings.ModeRoundRobin})
	require.NoError(t, err)
	assert.Equal(t, Decision{Assignee: "Omar", Method: MethodRoundRobin}, d)

	f.employees.err = errBoom
	d, err = f.engine.Decide(context.Background(), &lead.Lead{}, settings.AssignmentRules{Mode: settings.ModeSinglePerson, DefaultPerson: "Ali"})
	require.NoError(t, err, "single person does not touch the directory")
	assert.Equal(t, "Ali", d.Assignee)

	_, err = f.engine.Decide(context.Background(), &lead.Lead{}, settings.AssignmentRules{Mode: settings.ModeRoundRobin})
	require.ErrorIs(t, err, errBoom)
}

func TestAssignmentEngineDecideUnassignedFallbackSkipsDirectory(t *testing.T) {
	f := newFixture()
	f.employees.err = errBoom

	rules := settings.AssignmentRules{
		Mode:        settings.ModeSourceBased,
		Fallback:    settings.FallbackUnassigned,
		SourceRules: []settings.SourceRule{{Source: "Facebook", AssignTo: "Ali"}},
	}
	d, err := f.engine.Decide(context.Background(), &lead.Lead{Source: "Referral"}, rules)
	require.NoError(t, err)
	assert.Equal(t, Decision{Method: MethodUnassigned}, d)
}
