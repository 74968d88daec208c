// Package messaging defines the provider-neutral contract for outbound sends.
package messaging

import (
	"context"

	"banquet_crm/internal/domain/settings"
)

// Result is the normalized outcome of one provider call.
// Provider failures are reported here and never as a Go error.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failed builds an unsuccessful result.
func Failed(reason string) Result { return Result{Success: false, Error: reason} }

// SMSSender sends plain SMS through the "send message" provider.
type SMSSender interface {
	SendSMS(ctx context.Context, creds settings.TwilioSettings, to, body string) Result
}

// TwilioWhatsApp sends WhatsApp text through Twilio.
type TwilioWhatsApp interface {
	SendWhatsApp(ctx context.Context, creds settings.TwilioSettings, to, body string) Result
}

// WatiSender sends a WhatsApp session message through Wati.
type WatiSender interface {
	SendSessionMessage(ctx context.Context, creds settings.WatiSettings, to, text string) Result
}

// AisensySender triggers an Aisensy campaign message.
type AisensySender interface {
	SendCampaign(ctx context.Context, creds settings.AisensySettings, to, userName string, params []string) Result
}
