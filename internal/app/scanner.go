package app

import (
	"context"
	"fmt"
	"time"

	"banquet_crm/internal/domain/employee"
	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/notification"
	"banquet_crm/internal/domain/settings"

	"github.com/sirupsen/logrus"
)

// Sweep names accepted by Run.
const (
	SweepStale      = "stale"
	SweepSiteVisits = "site_visits"
	SweepQuotes     = "quotes"
)

const (
	ReminderAfter      = 24 * time.Hour
	EscalationAfter    = 48 * time.Hour
	QuoteFollowUpAfter = 72 * time.Hour
)

// SweepReport summarizes one run.
type SweepReport struct {
	Sweep      string    `json:"sweep"`
	Scanned    int       `json:"scanned"`
	Notified   int       `json:"notified"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Scanner walks open leads and raises reminders and escalations.
type Scanner struct {
	leads      lead.Repository
	settings   settings.Repository
	dispatcher *Dispatcher
	loc        *time.Location
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewScanner(lr lead.Repository, sr settings.Repository, d *Dispatcher, loc *time.Location, log logrus.FieldLogger) *Scanner {
	if loc == nil {
		loc = time.UTC
	}
	return &Scanner{
		leads:      lr,
		settings:   sr,
		dispatcher: d,
		loc:        loc,
		now:        time.Now,
		log:        log,
	}
}

// Run executes one sweep by name.
func (s *Scanner) Run(ctx context.Context, name string) (*SweepReport, error) {
	switch name {
	case SweepStale:
		return s.RunStaleSweep(ctx)
	case SweepSiteVisits:
		return s.RunSiteVisitSweep(ctx)
	case SweepQuotes:
		return s.RunQuoteSweep(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSweep, name)
	}
}

// leadCheck handles one lead and reports whether a notification was raised.
type leadCheck func(ctx context.Context, cfg *settings.Snapshot, l *lead.Lead, now time.Time) (bool, error)

func (s *Scanner) sweep(ctx context.Context, name string, stages []lead.Stage, check leadCheck) (*SweepReport, error) {
	report := &SweepReport{Sweep: name, StartedAt: s.now()}
	logCtx := s.log.WithField("sweep", name)

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for %s sweep: %w", name, err)
	}
	leads, err := s.leads.ListByStages(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads for %s sweep: %w", name, err)
	}

	now := s.now()
	for _, l := range leads {
		report.Scanned++
		var notified bool
		err := runIsolated(ctx, func(ctx context.Context) error {
			var err error
			notified, err = check(ctx, cfg, l, now)
			return err
		})
		if err != nil {
			report.Failed++
			logCtx.WithError(err).WithField("lead_id", l.ID).Error("Lead check failed")
			continue
		}
		if notified {
			report.Notified++
		}
	}

	report.FinishedAt = s.now()
	logCtx.WithFields(logrus.Fields{
		"scanned":  report.Scanned,
		"notified": report.Notified,
		"failed":   report.Failed,
	}).Info("Sweep finished")
	return report, nil
}

// RunStaleSweep raises at most one reminder or escalation per lead. Escalation is checked
// first, so a lead idle past both thresholds goes straight to escalated.
func (s *Scanner) RunStaleSweep(ctx context.Context) (*SweepReport, error) {
	return s.sweep(ctx, SweepStale, []lead.Stage{lead.StageNew, lead.StageContacted}, s.checkStale)
}

func (s *Scanner) checkStale(ctx context.Context, cfg *settings.Snapshot, l *lead.Lead, now time.Time) (bool, error) {
	idle := now.Sub(l.LastActivity())

	switch {
	case idle >= EscalationAfter && !l.Escalated:
		_, err := s.dispatcher.Notify(ctx, cfg, NotifyRequest{
			Type:    notification.TypeStaleLeadEscalation,
			Lead:    l,
			Target:  notification.ToRole(string(employee.RoleAdmin)),
			Message: fmt.Sprintf("Escalation: lead %s (owner: %s) has had no contact for %s.", l.Name, ownerName(l), idleText(idle)),
			SMSTo:   cfg.Integrations.SMS.EscalationRecipient,
		})
		if err != nil {
			return false, err
		}
		if _, err := s.leads.MarkEscalated(ctx, l.ID); err != nil {
			return true, fmt.Errorf("failed to flag lead escalated: %w", err)
		}
		l.Escalated = true
		return true, nil

	case idle >= ReminderAfter && !l.Reminded && !l.Escalated:
		_, err := s.dispatcher.Notify(ctx, cfg, NotifyRequest{
			Type:    notification.TypeStaleLeadReminder,
			Lead:    l,
			Target:  recipientTarget(l),
			Message: fmt.Sprintf("Reminder: lead %s has had no contact for %s. Please follow up.", l.Name, idleText(idle)),
			SMSTo:   l.Assignee,
		})
		if err != nil {
			return false, err
		}
		if _, err := s.leads.MarkReminded(ctx, l.ID); err != nil {
			return true, fmt.Errorf("failed to flag lead reminded: %w", err)
		}
		l.Reminded = true
		return true, nil
	}
	return false, nil
}

// RunSiteVisitSweep reminds about visits on tomorrow's date. It is not flag-gated.
func (s *Scanner) RunSiteVisitSweep(ctx context.Context) (*SweepReport, error) {
	return s.sweep(ctx, SweepSiteVisits, []lead.Stage{lead.StageSiteVisitScheduled}, s.checkSiteVisit)
}

func (s *Scanner) checkSiteVisit(ctx context.Context, cfg *settings.Snapshot, l *lead.Lead, now time.Time) (bool, error) {
	if l.SiteVisitDate == nil {
		return false, nil
	}
	visit := l.SiteVisitDate.In(s.loc)
	tomorrow := now.In(s.loc).AddDate(0, 0, 1)
	if !sameDate(visit, tomorrow) {
		return false, nil
	}
	_, err := s.dispatcher.Notify(ctx, cfg, NotifyRequest{
		Type:    notification.TypeSiteVisitReminder,
		Lead:    l,
		Target:  recipientTarget(l),
		Message: fmt.Sprintf("Site visit with %s is scheduled for tomorrow at %s.", l.Name, visit.Format("15:04")),
		SMSTo:   l.Assignee,
	})
	return err == nil, err
}

// RunQuoteSweep follows up once on quotes older than three days.
func (s *Scanner) RunQuoteSweep(ctx context.Context) (*SweepReport, error) {
	return s.sweep(ctx, SweepQuotes, []lead.Stage{lead.StageQuoted}, s.checkQuote)
}

func (s *Scanner) checkQuote(ctx context.Context, cfg *settings.Snapshot, l *lead.Lead, now time.Time) (bool, error) {
	if l.QuoteReminderSent {
		return false, nil
	}
	age := now.Sub(l.StageUpdatedAt)
	if age < QuoteFollowUpAfter {
		return false, nil
	}
	_, err := s.dispatcher.Notify(ctx, cfg, NotifyRequest{
		Type:    notification.TypeQuoteFollowUp,
		Lead:    l,
		Target:  recipientTarget(l),
		Message: fmt.Sprintf("Quote for %s was sent %d days ago. Time to follow up.", l.Name, int(age.Hours()/24)),
		SMSTo:   l.Assignee,
	})
	if err != nil {
		return false, err
	}
	if _, err := s.leads.MarkQuoteReminderSent(ctx, l.ID); err != nil {
		return true, fmt.Errorf("failed to flag quote reminder: %w", err)
	}
	l.QuoteReminderSent = true
	return true, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func ownerName(l *lead.Lead) string {
	if l.IsAssigned() {
		return l.Assignee
	}
	return "unassigned"
}

func idleText(d time.Duration) string {
	if d >= 48*time.Hour {
		return fmt.Sprintf("%d days", int(d.Hours()/24))
	}
	return fmt.Sprintf("%d hours", int(d.Hours()))
}
