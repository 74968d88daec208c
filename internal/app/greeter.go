package app

import (
	"context"
	"strings"
	"time"

	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/messaging"
	"banquet_crm/internal/domain/settings"
	"banquet_crm/internal/infra/phone"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Greeter sends the WhatsApp welcome message to new inbound leads.
type Greeter struct {
	twilio   messaging.TwilioWhatsApp
	wati     messaging.WatiSender
	aisensy  messaging.AisensySender
	leads    lead.Repository
	messages lead.MessageRepository
	phones   *phone.Normalizer
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewGreeter(
	tw messaging.TwilioWhatsApp,
	wa messaging.WatiSender,
	ai messaging.AisensySender,
	lr lead.Repository,
	mr lead.MessageRepository,
	phones *phone.Normalizer,
	log logrus.FieldLogger,
) *Greeter {
	return &Greeter{
		twilio:   tw,
		wati:     wa,
		aisensy:  ai,
		leads:    lr,
		messages: mr,
		phones:   phones,
		now:      time.Now,
		log:      log,
	}
}

// Greet returns the provider result and whether a send was attempted at all.
// Disabled greetings, missing credentials and leads without a phone are not attempts.
func (g *Greeter) Greet(ctx context.Context, cfg *settings.Snapshot, l *lead.Lead) (messaging.Result, bool) {
	wa := cfg.Integrations.WhatsApp
	if !wa.GreetingEnabled {
		return messaging.Result{}, false
	}
	to := g.phones.ForSending(l.Phone)
	if to == "" {
		return messaging.Result{}, false
	}

	text := wa.Greeting(firstName(l.Name))
	logCtx := g.log.WithFields(logrus.Fields{"lead_id": l.ID, "provider": wa.Provider})

	var res messaging.Result
	switch wa.Provider {
	case settings.ProviderTwilio:
		if !cfg.Integrations.Twilio.WhatsAppConfigured() {
			return messaging.Result{}, false
		}
		res = g.twilio.SendWhatsApp(ctx, cfg.Integrations.Twilio, to, text)
	case settings.ProviderWati:
		if !wa.Wati.Configured() {
			return messaging.Result{}, false
		}
		res = g.wati.SendSessionMessage(ctx, wa.Wati, to, text)
	case settings.ProviderAisensy:
		if !wa.Aisensy.Configured() {
			return messaging.Result{}, false
		}
		res = g.aisensy.SendCampaign(ctx, wa.Aisensy, to, l.Name, []string{firstName(l.Name)})
	default:
		logCtx.Debug("No WhatsApp provider selected, greeting skipped")
		return messaging.Result{}, false
	}

	if !res.Success {
		logCtx.WithField("provider_error", res.Error).Warn("WhatsApp greeting failed")
		return res, true
	}

	at := g.now()
	msg := &lead.Message{
		ID:         uuid.NewString(),
		LeadID:     l.ID,
		Direction:  lead.DirectionOutbound,
		Provider:   string(wa.Provider),
		ExternalID: res.MessageID,
		Text:       text,
		SentAt:     at,
	}
	if _, err := g.messages.Append(ctx, msg); err != nil {
		logCtx.WithError(err).Error("Failed to store greeting message")
	}
	if err := g.leads.RecordGreeting(ctx, l.ID, at); err != nil {
		logCtx.WithError(err).Error("Failed to record greeting on lead")
	} else {
		l.GreetingSentAt = &at
		l.LastContactedAt = &at
	}
	logCtx.WithField("message_id", res.MessageID).Info("WhatsApp greeting sent")
	return res, true
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
