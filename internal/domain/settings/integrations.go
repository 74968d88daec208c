package settings

import "strings"

// DefaultGreeting is used when no greeting template is configured. {name} is replaced
// with the lead name.
const DefaultGreeting = "Assalam-o-Alaikum {name}! Thank you for contacting us about your event. Our team will get back to you shortly."

// WhatsAppProvider names the greeting adapter.
type WhatsAppProvider string

const (
	ProviderTwilio  WhatsAppProvider = "twilio"
	ProviderWati    WhatsAppProvider = "wati"
	ProviderAisensy WhatsAppProvider = "aisensy"
)

// IntegrationSettings holds provider credentials and feature toggles.
type IntegrationSettings struct {
	SMS      SMSSettings      `json:"sms"`
	Twilio   TwilioSettings   `json:"twilio"`
	WhatsApp WhatsAppSettings `json:"whatsapp"`
	Meta     MetaSettings     `json:"meta"`
}

// SMSSettings are the staff SMS toggles.
type SMSSettings struct {
	Enabled         bool `json:"enabled"`
	OnAssignment    bool `json:"onAssignment"`
	OnEscalation    bool `json:"onEscalation"`
	OnSiteVisit     bool `json:"onSiteVisit"`
	OnQuoteFollowUp bool `json:"onQuoteFollowUp"`
	// EscalationRecipient is the employee name that receives escalation SMS.
	EscalationRecipient string `json:"escalationRecipient,omitempty"`
}

// TwilioSettings are the "send message" API credentials used for SMS and,
// when selected, for WhatsApp.
type TwilioSettings struct {
	AccountSID   string `json:"accountSid"`
	AuthToken    string `json:"authToken"`
	FromNumber   string `json:"fromNumber"`
	WhatsAppFrom string `json:"whatsappFrom,omitempty"`
}

// SMSConfigured reports whether SMS can be sent.
func (t TwilioSettings) SMSConfigured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// WhatsAppConfigured reports whether WhatsApp can be sent through Twilio.
func (t TwilioSettings) WhatsAppConfigured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

// WhatsAppSettings configure the auto-greeting.
type WhatsAppSettings struct {
	GreetingEnabled  bool             `json:"greetingEnabled"`
	Provider         WhatsAppProvider `json:"provider"`
	GreetingTemplate string           `json:"greetingTemplate,omitempty"`
	Wati             WatiSettings     `json:"wati"`
	Aisensy          AisensySettings  `json:"aisensy"`
}

// Greeting renders the greeting template for a lead name.
func (w WhatsAppSettings) Greeting(name string) string {
	tpl := w.GreetingTemplate
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultGreeting
	}
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return strings.ReplaceAll(tpl, "{name}", name)
}

// WatiSettings are the Wati tenant endpoint and token.
type WatiSettings struct {
	Endpoint    string `json:"endpoint"`
	AccessToken string `json:"accessToken"`
}

func (w WatiSettings) Configured() bool { return w.Endpoint != "" && w.AccessToken != "" }

// AisensySettings are the Aisensy campaign API credentials.
type AisensySettings struct {
	APIKey       string `json:"apiKey"`
	CampaignName string `json:"campaignName"`
}

func (a AisensySettings) Configured() bool { return a.APIKey != "" && a.CampaignName != "" }

// MetaSettings configure the lead-gen webhook.
type MetaSettings struct {
	VerifyToken     string `json:"verifyToken"`
	PageAccessToken string `json:"pageAccessToken"`
}
