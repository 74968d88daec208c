package app

import (
	"context"
	"errors"
	"fmt"

	"banquet_crm/internal/domain/lead"
	idb "banquet_crm/internal/infra/database"
	"banquet_crm/internal/infra/phone"
	"banquet_crm/internal/infra/webhook"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// InboundResult says what a webhook event did. Handled is false for events that were
// acknowledged and dropped; Reason explains why.
type InboundResult struct {
	Handled bool
	Created bool
	Lead    *lead.Lead
	Message *lead.Message
	Reason  string
}

// InboundService attaches provider messages to leads, creating a lead for unknown senders.
type InboundService struct {
	leads    lead.Repository
	messages lead.MessageRepository
	leadSvc  *LeadService
	phones   *phone.Normalizer
	log      logrus.FieldLogger
}

func NewInboundService(lr lead.Repository, mr lead.MessageRepository, ls *LeadService, phones *phone.Normalizer, log logrus.FieldLogger) *InboundService {
	return &InboundService{leads: lr, messages: mr, leadSvc: ls, phones: phones, log: log}
}

func (s *InboundService) Handle(ctx context.Context, ev webhook.Event) (*InboundResult, error) {
	logCtx := s.log.WithField("provider", ev.Provider)
	switch ev.Kind {
	case webhook.KindStatus:
		logCtx.WithField("status", ev.Status.Status).Debug("Status update acknowledged")
		return &InboundResult{Reason: "status update"}, nil
	case webhook.KindMessage:
	default:
		logCtx.WithField("reason", ev.Reason).Info("Unhandled webhook payload dropped")
		return &InboundResult{Reason: ev.Reason}, nil
	}

	m := ev.Message
	phoneKey := s.phones.ForLookup(m.Phone)
	if phoneKey == "" {
		return &InboundResult{Reason: "no usable phone number"}, nil
	}
	logCtx = logCtx.WithField("direction", m.Direction)

	res := &InboundResult{}
	l, err := s.leads.GetByPhone(ctx, phoneKey)
	switch {
	case err == nil:
	case errors.Is(err, idb.ErrLeadNotFound):
		if m.Direction != lead.DirectionInbound {
			logCtx.Info("Outbound message for unknown lead ignored")
			return &InboundResult{Reason: "outbound message for unknown lead"}, nil
		}
		created, err := s.leadSvc.CreateLead(ctx, CreateLeadInput{
			Name:    m.SenderName,
			Phone:   phoneKey,
			Source:  lead.SourceWhatsAppInbound,
			Notes:   m.Text,
			Inbound: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create lead for inbound message: %w", err)
		}
		l = created.Lead
		res.Created = !created.Duplicate
	default:
		return nil, fmt.Errorf("failed to look up lead by phone: %w", err)
	}

	msg := &lead.Message{
		ID:         uuid.NewString(),
		LeadID:     l.ID,
		Direction:  m.Direction,
		Provider:   m.Provider,
		ExternalID: m.ExternalID,
		Text:       m.Text,
		MediaURL:   m.MediaURL,
		SenderName: m.SenderName,
		SentAt:     m.SentAt,
	}
	inserted, err := s.messages.Append(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	if !inserted {
		logCtx.WithFields(logrus.Fields{"lead_id": l.ID, "external_id": m.ExternalID}).Info("Duplicate message ignored")
		return &InboundResult{Lead: l, Created: res.Created, Reason: "duplicate message"}, nil
	}

	preview := m.Text
	if preview == "" && m.MediaURL != "" {
		preview = "[media]"
	}
	if err := s.leads.RecordActivity(ctx, l.ID, lead.Activity{Preview: preview, At: m.SentAt, Direction: m.Direction}); err != nil {
		return nil, fmt.Errorf("failed to record message activity: %w", err)
	}

	logCtx.WithFields(logrus.Fields{"lead_id": l.ID, "created": res.Created}).Info("Message stored")
	res.Handled = true
	res.Lead = l
	res.Message = msg
	return res, nil
}
