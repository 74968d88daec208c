// Package twilio sends SMS and WhatsApp text through the Twilio Messages API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"banquet_crm/internal/domain/messaging"
	"banquet_crm/internal/domain/settings"

	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.twilio.com"

type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

func NewClient(baseURL string, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.WithField("provider", "twilio"),
	}
}

// SendSMS sends a plain SMS. to must already be in +<country><number> form.
func (c *Client) SendSMS(ctx context.Context, creds settings.TwilioSettings, to, body string) messaging.Result {
	if !creds.SMSConfigured() {
		return messaging.Failed("twilio sms credentials not configured")
	}
	return c.send(ctx, creds, creds.FromNumber, to, body)
}

// SendWhatsApp sends WhatsApp text using the whatsapp: address prefix.
func (c *Client) SendWhatsApp(ctx context.Context, creds settings.TwilioSettings, to, body string) messaging.Result {
	if !creds.WhatsAppConfigured() {
		return messaging.Failed("twilio whatsapp credentials not configured")
	}
	return c.send(ctx, creds, whatsappAddress(creds.WhatsAppFrom), whatsappAddress(to), body)
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

func (c *Client) send(ctx context.Context, creds settings.TwilioSettings, from, to, body string) messaging.Result {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(creds.AccountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return messaging.Failed(fmt.Sprintf("build request: %v", err))
	}
	req.SetBasicAuth(creds.AccountSID, creds.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("Twilio request failed")
		return messaging.Failed(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		reason := fmt.Sprintf("twilio status %d", resp.StatusCode)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			reason = fmt.Sprintf("twilio error %d: %s", apiErr.Code, apiErr.Message)
		}
		c.log.WithField("status", resp.StatusCode).WithField("body", string(raw)).Warn("Twilio rejected message")
		return messaging.Failed(reason)
	}

	var msg messageResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		return messaging.Failed(fmt.Sprintf("decode response: %v", err))
	}
	if msg.ErrorCode != nil {
		return messaging.Failed(fmt.Sprintf("twilio error %d: %s", *msg.ErrorCode, msg.ErrorMessage))
	}
	return messaging.Result{Success: true, MessageID: msg.SID}
}
