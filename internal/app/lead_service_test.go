package app

import (
	"context"
	"testing"
	"time"

	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/notification"
	"banquet_crm/internal/domain/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func effectErr(res *CreateLeadResult, name string) error {
	for _, e := range res.Effects {
		if e.Name == name {
			return e.Err
		}
	}
	return nil
}

func TestCreateLeadRoundRobinRunsEffects(t *testing.T) {
	f := newFixture(&lead.Lead{ID: "old", Stage: lead.StageNew, Assignee: "Ali", Phone: "03000000001"})

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{
		Name:   "Sara Khan",
		Phone:  "+92 300 1234567",
		Source: "Website",
	})
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	assert.Empty(t, res.FailedEffects())

	l := res.Lead
	assert.Equal(t, "03001234567", l.Phone)
	assert.Equal(t, lead.StageNew, l.Stage)
	assert.Equal(t, Decision{Assignee: "Sana", Method: MethodRoundRobin}, res.Decision)

	stored := f.leads.get(l.ID)
	assert.Equal(t, "Sana", stored.Assignee)
	assert.Equal(t, string(MethodRoundRobin), stored.AssignmentMethod)
	require.NotNil(t, stored.AssignedAt)
	assert.Equal(t, f.now, *stored.AssignedAt)

	require.NotNil(t, res.Notification)
	assert.Equal(t, notification.TypeLeadAssigned, res.Notification.Type)
	assert.Equal(t, notification.ToUser("Sana"), res.Notification.Target)
	assert.Equal(t, 1, f.sms.count())

	require.Len(t, f.fanout.published, 1)
	assert.Equal(t, l.ID, f.fanout.published[0].Lead.ID)
	assert.Equal(t, res.Notification, f.fanout.published[0].Notification)

	// Not inbound: no greeting.
	assert.Empty(t, f.whatsapp.calls)
}

func TestCreateLeadSourceBasedScenario(t *testing.T) {
	f := newFixture()
	f.settings.snap.Assignment = settings.AssignmentRules{
		Mode:        settings.ModeSourceBased,
		SourceRules: []settings.SourceRule{{Source: "facebook", AssignTo: "Ali"}},
	}

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Bilal", Source: "Facebook"})
	require.NoError(t, err)

	stored := f.leads.get(res.Lead.ID)
	assert.Equal(t, "Ali", stored.Assignee)
	assert.Equal(t, "source_based", stored.AssignmentMethod)
}

func TestCreateLeadManualModeNotifiesEveryone(t *testing.T) {
	f := newFixture()
	f.settings.snap.Assignment = settings.AssignmentRules{Mode: settings.ModeManual}

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Bilal", Phone: "03001234567"})
	require.NoError(t, err)

	assert.Equal(t, MethodManual, res.Decision.Method)
	assert.False(t, f.leads.get(res.Lead.ID).IsAssigned())
	assert.Equal(t, notification.ToAll(), res.Notification.Target)
	assert.Equal(t, 0, f.sms.count(), "no assignee means no sms recipient")
}

func TestCreateLeadPreassigned(t *testing.T) {
	f := newFixture()
	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Bilal", Assignee: "Omar"})
	require.NoError(t, err)
	assert.Equal(t, Decision{Assignee: "Omar", Method: MethodManual}, res.Decision)
	assert.Equal(t, "Omar", f.leads.get(res.Lead.ID).Assignee)
}

func TestCreateLeadDuplicatePhone(t *testing.T) {
	existing := &lead.Lead{ID: "lead-1", Name: "Sara", Phone: "03001234567", Stage: lead.StageContacted}
	f := newFixture(existing)

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Sara again", Phone: "923001234567"})
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Equal(t, "lead-1", res.Lead.ID)
	assert.Empty(t, res.Effects)
	assert.Equal(t, 1, f.leads.count())
	assert.Empty(t, f.notifications.all())
	assert.Empty(t, f.fanout.published)
}

func TestCreateLeadValidation(t *testing.T) {
	f := newFixture()
	_, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Source: "Website"})
	require.ErrorIs(t, err, ErrInvalidLead)

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Phone: "0300-1234567"})
	require.NoError(t, err)
	assert.Equal(t, "03001234567", res.Lead.Name, "phone stands in for a missing name")
}

func TestCreateLeadSettingsFailure(t *testing.T) {
	f := newFixture()
	f.settings.err = errBoom
	_, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Sara"})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, f.leads.count())
}

func TestCreateLeadEffectsAreIsolated(t *testing.T) {
	f := newFixture()
	f.notifications.failAll = true
	f.fanout.panics = true
	f.settings.snap.Automation = []settings.AutomationRule{{Source: "website", AIHandling: true}}

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Sara", Source: "Website"})
	require.NoError(t, err, "effects never fail lead creation")

	assert.ErrorIs(t, effectErr(res, "notify"), errBoom)
	assert.NoError(t, effectErr(res, "automation"))
	assert.NoError(t, effectErr(res, "greeting"))
	assert.ErrorContains(t, effectErr(res, "fanout"), "panic")
	assert.Len(t, res.FailedEffects(), 2)

	stored := f.leads.get(res.Lead.ID)
	assert.True(t, stored.IsAssigned(), "assignment survives failed effects")
	assert.True(t, stored.AIHandling)
}

func TestCreateLeadAssignmentFailureLeavesUnassigned(t *testing.T) {
	f := newFixture()
	f.employees.err = errBoom

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Sara"})
	require.NoError(t, err)
	assert.Equal(t, MethodUnassigned, res.Decision.Method)
	assert.ErrorIs(t, effectErr(res, "assign"), errBoom)
	require.NotNil(t, res.Notification)
	assert.Equal(t, notification.ToAll(), res.Notification.Target)
}

func TestCreateLeadInboundGreets(t *testing.T) {
	f := newFixture()
	f.settings.snap = greetingSnapshot(settings.ProviderWati)

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Sara", Phone: "03001234567", Inbound: true})
	require.NoError(t, err)
	assert.NoError(t, effectErr(res, "greeting"))
	assert.Equal(t, []string{"wati"}, f.whatsapp.calls)
	assert.NotNil(t, f.leads.get(res.Lead.ID).GreetingSentAt)
}

func TestCreateLeadSameDayCallAutomation(t *testing.T) {
	f := newFixture()
	f.settings.snap.Automation = []settings.AutomationRule{{Source: "Facebook", ScheduleCallSameDay: true}}

	res, err := f.leadSvc.CreateLead(context.Background(), CreateLeadInput{Name: "Sara", Source: " facebook "})
	require.NoError(t, err)

	stored := f.leads.get(res.Lead.ID)
	require.NotNil(t, stored.NextFollowUpAt)
	// 10:00 UTC is 15:00 in Karachi, so the call lands at 18:00 local.
	local := stored.NextFollowUpAt.In(f.loc)
	assert.Equal(t, 18, local.Hour())
	assert.Equal(t, 10, local.Day())
	assert.False(t, stored.AIHandling)
}

func TestSameDayCall(t *testing.T) {
	loc := karachi()
	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 10, 18, 0, 0, 0, loc), sameDayCall(morning, loc))

	evening := time.Date(2026, 3, 10, 19, 30, 0, 0, loc)
	assert.Equal(t, evening.Add(time.Hour), sameDayCall(evening, loc))
}

func TestChangeStage(t *testing.T) {
	f := newFixture(&lead.Lead{ID: "lead-1", Stage: lead.StageQuoted, QuoteReminderSent: true, Reminded: true})
	ctx := context.Background()

	l, err := f.leadSvc.ChangeStage(ctx, "lead-1", lead.StageContacted)
	require.NoError(t, err)
	assert.Equal(t, lead.StageContacted, l.Stage)
	assert.Equal(t, f.now, l.StageUpdatedAt)
	assert.True(t, l.QuoteReminderSent)

	l, err = f.leadSvc.ChangeStage(ctx, "lead-1", lead.StageQuoted)
	require.NoError(t, err)
	assert.False(t, l.QuoteReminderSent, "a new quote gets its own follow-up")
	assert.True(t, l.Reminded, "stale flags are never reset")

	_, err = f.leadSvc.ChangeStage(ctx, "lead-1", "Negotiation")
	require.ErrorIs(t, err, ErrInvalidStage)

	_, err = f.leadSvc.ChangeStage(ctx, "missing", lead.StageBooked)
	require.Error(t, err)
}
