package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/notification"
	"banquet_crm/internal/domain/settings"
	idb "banquet_crm/internal/infra/database"
	"banquet_crm/internal/infra/phone"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Fanout receives every newly created lead. Implementations are best effort.
type Fanout interface {
	PublishNewLead(ctx context.Context, l *lead.Lead, n *notification.Notification) error
}

// CreateLeadInput is a lead from any entry point. Inbound marks leads that reached us
// on their own (webhook, Meta form, public form) and are eligible for the greeting.
type CreateLeadInput struct {
	Name          string
	Phone         string
	Email         string
	Source        string
	Notes         string
	ExternalRef   string
	EventDate     *time.Time
	GuestCount    int
	SiteVisitDate *time.Time
	Assignee      string
	Inbound       bool
}

// EffectResult is the outcome of one post-assignment effect. Err is nil on success.
type EffectResult struct {
	Name string
	Err  error
}

type CreateLeadResult struct {
	Lead         *lead.Lead
	Decision     Decision
	Duplicate    bool
	Notification *notification.Notification
	Effects      []EffectResult
}

// FailedEffects returns the effects that did not complete.
func (r *CreateLeadResult) FailedEffects() []EffectResult {
	var failed []EffectResult
	for _, e := range r.Effects {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	return failed
}

type LeadService struct {
	leads      lead.Repository
	settings   settings.Repository
	engine     *AssignmentEngine
	dispatcher *Dispatcher
	greeter    *Greeter
	fanouts    []Fanout
	phones     *phone.Normalizer
	loc        *time.Location
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewLeadService(
	lr lead.Repository,
	sr settings.Repository,
	engine *AssignmentEngine,
	dispatcher *Dispatcher,
	greeter *Greeter,
	phones *phone.Normalizer,
	loc *time.Location,
	log logrus.FieldLogger,
	fanouts ...Fanout,
) *LeadService {
	if loc == nil {
		loc = time.UTC
	}
	return &LeadService{
		leads:      lr,
		settings:   sr,
		engine:     engine,
		dispatcher: dispatcher,
		greeter:    greeter,
		fanouts:    fanouts,
		phones:     phones,
		loc:        loc,
		now:        time.Now,
		log:        log,
	}
}

// CreateLead stores a new lead, assigns it and runs the post-assignment effects.
// A lead whose phone already exists is returned as a duplicate without side effects.
func (s *LeadService) CreateLead(ctx context.Context, in CreateLeadInput) (*CreateLeadResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Source = strings.TrimSpace(in.Source)
	phoneKey := s.phones.ForLookup(in.Phone)
	if in.Name == "" && phoneKey == "" && in.Email == "" {
		return nil, ErrInvalidLead
	}
	if in.Name == "" {
		in.Name = phoneKey
		if in.Name == "" {
			in.Name = in.Email
		}
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if existing, err := s.existingByPhone(ctx, phoneKey); err != nil {
		return nil, err
	} else if existing != nil {
		return &CreateLeadResult{Lead: existing, Duplicate: true}, nil
	}

	now := s.now()
	l := &lead.Lead{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Phone:         phoneKey,
		Email:         in.Email,
		Source:        in.Source,
		Stage:         lead.StageNew,
		Notes:         in.Notes,
		ExternalRef:   in.ExternalRef,
		EventDate:     in.EventDate,
		GuestCount:    in.GuestCount,
		SiteVisitDate: in.SiteVisitDate,
		CreatedAt:     now,
	}
	if err := s.leads.Create(ctx, l); err != nil {
		if errors.Is(err, idb.ErrDuplicatePhone) {
			// Lost a race with a concurrent delivery for the same phone.
			existing, getErr := s.leads.GetByPhone(ctx, phoneKey)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load lead after duplicate phone: %w", getErr)
			}
			return &CreateLeadResult{Lead: existing, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	logCtx := s.log.WithFields(logrus.Fields{"lead_id": l.ID, "source": l.Source})
	res := &CreateLeadResult{Lead: l}

	if assignee := strings.TrimSpace(in.Assignee); assignee != "" {
		res.Decision = Decision{Assignee: assignee, Method: MethodManual}
	} else {
		res.Decision, err = s.engine.Decide(ctx, l, cfg.Assignment)
		if err != nil {
			logCtx.WithError(err).Error("Assignment failed, lead left unassigned")
			res.Decision = Decision{Method: MethodUnassigned}
			res.Effects = append(res.Effects, EffectResult{Name: "assign", Err: err})
		}
	}
	if res.Decision.Assignee != "" {
		if err := s.leads.SetAssignment(ctx, l.ID, res.Decision.Assignee, string(res.Decision.Method), now); err != nil {
			return nil, fmt.Errorf("failed to store assignment: %w", err)
		}
		l.Assignee = res.Decision.Assignee
		l.AssignedAt = &now
	}
	l.AssignmentMethod = string(res.Decision.Method)
	logCtx.WithFields(logrus.Fields{"assignee": l.Assignee, "method": l.AssignmentMethod}).Info("Lead created")

	res.Effects = append(res.Effects, s.runEffects(ctx, cfg, l, in.Inbound, res)...)
	for _, e := range res.FailedEffects() {
		logCtx.WithError(e.Err).WithField("effect", e.Name).Warn("Post-assignment effect failed")
	}
	return res, nil
}

func (s *LeadService) existingByPhone(ctx context.Context, phoneKey string) (*lead.Lead, error) {
	if phoneKey == "" {
		return nil, nil
	}
	existing, err := s.leads.GetByPhone(ctx, phoneKey)
	if err != nil {
		if errors.Is(err, idb.ErrLeadNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up lead by phone: %w", err)
	}
	return existing, nil
}

type effect struct {
	name string
	run  func(ctx context.Context) error
}

// runEffects runs every effect in order; a failing or panicking effect does not stop the rest.
func (s *LeadService) runEffects(ctx context.Context, cfg *settings.Snapshot, l *lead.Lead, inbound bool, res *CreateLeadResult) []EffectResult {
	effects := []effect{
		{"notify", func(ctx context.Context) error {
			out, err := s.dispatcher.Notify(ctx, cfg, NotifyRequest{
				Type:    notification.TypeLeadAssigned,
				Lead:    l,
				Target:  recipientTarget(l),
				Message: assignmentMessage(l),
				SMSTo:   l.Assignee,
			})
			if err != nil {
				return err
			}
			res.Notification = out.Notification
			return nil
		}},
		{"automation", func(ctx context.Context) error {
			return s.applyAutomation(ctx, cfg, l)
		}},
		{"greeting", func(ctx context.Context) error {
			if !inbound {
				return nil
			}
			if r, attempted := s.greeter.Greet(ctx, cfg, l); attempted && !r.Success {
				return fmt.Errorf("greeting not delivered: %s", r.Error)
			}
			return nil
		}},
		{"fanout", func(ctx context.Context) error {
			var errs []error
			for _, f := range s.fanouts {
				if err := f.PublishNewLead(ctx, l, res.Notification); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}},
	}

	results := make([]EffectResult, 0, len(effects))
	for _, e := range effects {
		results = append(results, EffectResult{Name: e.name, Err: runIsolated(ctx, e.run)})
	}
	return results
}

// runIsolated converts a panic into an error.
func runIsolated(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func assignmentMessage(l *lead.Lead) string {
	src := l.Source
	if src == "" {
		src = "unknown source"
	}
	if l.IsAssigned() {
		return fmt.Sprintf("New lead %s (%s) has been assigned to you.", l.Name, src)
	}
	return fmt.Sprintf("New unassigned lead %s (%s) needs an owner.", l.Name, src)
}

// callCutoff is the local time a same-day call is scheduled for.
const callCutoff = 18

func (s *LeadService) applyAutomation(ctx context.Context, cfg *settings.Snapshot, l *lead.Lead) error {
	rule, ok := cfg.AutomationFor(l.Source)
	if !ok || (!rule.ScheduleCallSameDay && !rule.AIHandling) {
		return nil
	}
	patch := lead.Automation{AIHandling: rule.AIHandling}
	if rule.ScheduleCallSameDay {
		at := sameDayCall(s.now(), s.loc)
		patch.NextFollowUpAt = &at
	}
	if err := s.leads.ApplyAutomation(ctx, l.ID, patch); err != nil {
		return fmt.Errorf("failed to apply automation for source %q: %w", l.Source, err)
	}
	if patch.NextFollowUpAt != nil {
		l.NextFollowUpAt = patch.NextFollowUpAt
	}
	l.AIHandling = l.AIHandling || patch.AIHandling
	return nil
}

// sameDayCall is 18:00 local today, or an hour from now once that has passed.
func sameDayCall(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), callCutoff, 0, 0, 0, loc)
	if !local.Before(cutoff) {
		return now.Add(time.Hour)
	}
	return cutoff
}

// ChangeStage moves a lead to another stage. Entering Quoted again starts a new quote follow-up.
func (s *LeadService) ChangeStage(ctx context.Context, id string, stage lead.Stage) (*lead.Lead, error) {
	if _, ok := lead.ParseStage(string(stage)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	if err := s.leads.UpdateStage(ctx, id, stage, s.now()); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"lead_id": id, "stage": stage}).Info("Lead stage changed")
	return s.leads.GetByID(ctx, id)
}
