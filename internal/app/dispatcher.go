package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"banquet_crm/internal/domain/employee"
	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/messaging"
	"banquet_crm/internal/domain/notification"
	"banquet_crm/internal/domain/settings"
	domainTelegram "banquet_crm/internal/domain/telegram"
	idb "banquet_crm/internal/infra/database"
	"banquet_crm/internal/infra/phone"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SMSStatus is what happened to the SMS attached to a notification.
type SMSStatus string

const (
	SMSSent    SMSStatus = "sent"
	SMSSkipped SMSStatus = "skipped"
	SMSFailed  SMSStatus = "failed"
)

// NotifyRequest describes one notification. SMSTo names the employee whose phone
// receives the SMS; empty means no SMS.
type NotifyRequest struct {
	Type     notification.Type
	Lead     *lead.Lead
	Target   notification.Target
	Message  string
	SMSTo    string
	Priority notification.Priority
}

// Outcome is the persisted notification plus the SMS attempt result.
type Outcome struct {
	Notification *notification.Notification
	SMS          SMSStatus
	SMSReason    string
	SMSMessageID string
}

// Dispatcher records in-app notifications and fires the matching staff SMS.
type Dispatcher struct {
	notifications notification.Repository
	employees     employee.Repository
	sms           messaging.SMSSender
	phones        *phone.Normalizer
	telegram      domainTelegram.Client
	alertChatID   int64
	now           func() time.Time
	log           logrus.FieldLogger
}

func NewDispatcher(
	nr notification.Repository,
	er employee.Repository,
	sms messaging.SMSSender,
	phones *phone.Normalizer,
	log logrus.FieldLogger,
) *Dispatcher {
	return &Dispatcher{
		notifications: nr,
		employees:     er,
		sms:           sms,
		phones:        phones,
		now:           time.Now,
		log:           log,
	}
}

// WithTelegramAlerts mirrors escalations into a staff Telegram chat.
func (d *Dispatcher) WithTelegramAlerts(tc domainTelegram.Client, chatID int64) *Dispatcher {
	d.telegram = tc
	d.alertChatID = chatID
	return d
}

// Notify persists the notification first. Only a persistence failure is returned as an error;
// SMS and Telegram problems are reported in the Outcome and the log.
func (d *Dispatcher) Notify(ctx context.Context, cfg *settings.Snapshot, req NotifyRequest) (*Outcome, error) {
	priority := req.Priority
	if priority == "" {
		priority = notification.DefaultPriority(req.Type)
	}
	n := &notification.Notification{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Target:    req.Target,
		Message:   req.Message,
		Priority:  priority,
		CreatedAt: d.now(),
	}
	if req.Lead != nil {
		n.LeadID = req.Lead.ID
	}

	logCtx := d.log.WithFields(logrus.Fields{
		"notification_type": req.Type,
		"lead_id":           n.LeadID,
	})

	if err := d.notifications.Create(ctx, n); err != nil {
		logCtx.WithError(err).Error("Failed to persist notification")
		return nil, fmt.Errorf("failed to persist %s notification: %w", req.Type, err)
	}

	out := &Outcome{Notification: n}
	out.SMS, out.SMSReason, out.SMSMessageID = d.sendSMS(ctx, cfg, req)
	logCtx.WithFields(logrus.Fields{"sms": out.SMS, "sms_reason": out.SMSReason}).Info("Notification dispatched")

	if req.Type == notification.TypeStaleLeadEscalation {
		d.alertTelegram(req.Message, logCtx)
	}
	return out, nil
}

// smsToggle maps a notification type to its per-type SMS toggle.
func smsToggle(s settings.SMSSettings, t notification.Type) bool {
	switch t {
	case notification.TypeLeadAssigned:
		return s.OnAssignment
	case notification.TypeStaleLeadReminder, notification.TypeStaleLeadEscalation:
		return s.OnEscalation
	case notification.TypeSiteVisitReminder:
		return s.OnSiteVisit
	case notification.TypeQuoteFollowUp:
		return s.OnQuoteFollowUp
	default:
		return false
	}
}

func (d *Dispatcher) sendSMS(ctx context.Context, cfg *settings.Snapshot, req NotifyRequest) (SMSStatus, string, string) {
	smsCfg := cfg.Integrations.SMS
	switch {
	case !smsCfg.Enabled:
		return SMSSkipped, "sms disabled", ""
	case !smsToggle(smsCfg, req.Type):
		return SMSSkipped, fmt.Sprintf("sms off for %s", req.Type), ""
	case !cfg.Integrations.Twilio.SMSConfigured():
		return SMSSkipped, "sms credentials missing", ""
	case strings.TrimSpace(req.SMSTo) == "":
		return SMSSkipped, "no sms recipient", ""
	}

	emp, err := d.employees.GetByName(ctx, req.SMSTo)
	if err != nil {
		if !errors.Is(err, idb.ErrEmployeeNotFound) {
			d.log.WithError(err).WithField("employee", req.SMSTo).Error("Failed to look up SMS recipient")
		}
		return SMSSkipped, "recipient not found", ""
	}
	to := d.phones.ForSending(emp.Phone)
	if to == "" {
		return SMSSkipped, "recipient has no phone", ""
	}
	if !d.phones.IsValid(emp.Phone) {
		d.log.WithField("employee", emp.Name).Warn("SMS recipient has an invalid phone number")
		return SMSSkipped, "recipient phone invalid", ""
	}

	res := d.sms.SendSMS(ctx, cfg.Integrations.Twilio, to, req.Message)
	if !res.Success {
		d.log.WithField("employee", emp.Name).WithField("provider_error", res.Error).Warn("SMS send failed")
		return SMSFailed, res.Error, ""
	}
	return SMSSent, "", res.MessageID
}

func (d *Dispatcher) alertTelegram(text string, logCtx logrus.FieldLogger) {
	if d.telegram == nil || d.alertChatID == 0 {
		return
	}
	if err := d.telegram.SendText(d.alertChatID, "⚠️ "+text); err != nil {
		logCtx.WithError(err).Warn("Failed to mirror escalation to Telegram")
	}
}

// ListForRecipient returns the notifications a user sees: their own, their role's, and broadcast ones.
func (d *Dispatcher) ListForRecipient(ctx context.Context, userName, role string, limit int) ([]*notification.Notification, error) {
	return d.notifications.ListForRecipient(ctx, userName, role, limit)
}

func (d *Dispatcher) MarkRead(ctx context.Context, id string) error {
	return d.notifications.MarkRead(ctx, id)
}

// MarkAllRead also marks role and broadcast notifications read for every other viewer.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userName, role string) (int64, error) {
	n, err := d.notifications.MarkAllRead(ctx, userName, role)
	if err != nil {
		return 0, err
	}
	d.log.WithFields(logrus.Fields{"user": userName, "role": role, "count": n}).Info("Notifications marked read")
	return n, nil
}

// recipientTarget addresses the assignee, or everyone when the lead is unassigned.
func recipientTarget(l *lead.Lead) notification.Target {
	if l.IsAssigned() {
		return notification.ToUser(l.Assignee)
	}
	return notification.ToAll()
}
