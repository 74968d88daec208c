// Package webhook turns provider webhook bodies into provider-neutral events.
// Decoding never fails: anything that is not positively recognized comes back as KindUnhandled.
package webhook

import (
	"time"

	"banquet_crm/internal/domain/lead"
)

// Kind tags which field of Event is populated.
type Kind string

const (
	KindUnhandled Kind = "unhandled"
	KindMessage   Kind = "message"
	KindStatus    Kind = "status"
)

const (
	ProviderTwilio  = "twilio"
	ProviderWati    = "wati"
	ProviderAisensy = "aisensy"
)

// Event is the decoded webhook. Exactly one of Message or Status is set for the
// message and status kinds; Reason explains an unhandled body.
type Event struct {
	Kind     Kind
	Provider string
	Message  *InboundMessage
	Status   *StatusUpdate
	Reason   string
}

// InboundMessage is one conversation entry. Phone is the customer's number as the
// provider sent it, whatever the direction.
type InboundMessage struct {
	Provider   string
	ExternalID string
	Phone      string
	Direction  lead.Direction
	Text       string
	MediaURL   string
	SenderName string
	SentAt     time.Time
}

// StatusUpdate is a delivery receipt. It is acknowledged and not stored.
type StatusUpdate struct {
	ExternalID string
	Status     string
}

// DecodeOptions carries what decoding needs beyond the body.
type DecodeOptions struct {
	// BusinessNumber is our own WhatsApp number; a Twilio message from it is outbound.
	BusinessNumber string
	Now            func() time.Time
}

func (o DecodeOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func unhandled(provider, reason string) Event {
	return Event{Kind: KindUnhandled, Provider: provider, Reason: reason}
}

func statusEvent(provider, id, status string) Event {
	return Event{Kind: KindStatus, Provider: provider, Status: &StatusUpdate{ExternalID: id, Status: status}}
}

// messageEvent rejects messages without a counterpart phone.
func messageEvent(m *InboundMessage) Event {
	if m.Phone == "" {
		return unhandled(m.Provider, "message without phone number")
	}
	return Event{Kind: KindMessage, Provider: m.Provider, Message: m}
}
