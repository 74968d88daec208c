// Package wati sends WhatsApp session messages through a Wati tenant.
package wati

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
	"banquet_crm/internal/infra/phone"

	"github.com/sirupsen/logrus"
)

type Client struct {
	http *http.Client
	log  logrus.FieldLogger
}

func NewClient(log logrus.FieldLogger) *Client {
	return &Client{
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log.WithField("provider", "wati"),
	}
}

// SendSessionMessage sends free text inside the 24h session window.
// Wati addresses contacts by waId, the number in digits without the plus sign.
func (c *Client) SendSessionMessage(ctx context.Context, creds settings.WatiSettings, to, text string) messaging.Result {
	if !creds.Configured() {
		return messaging.Failed("wati credentials not configured")
	}
	waID := phone.Digits(to)
	if waID == "" {
		return messaging.Failed("wati recipient has no digits")
	}

	endpoint := fmt.Sprintf("%s/api/v1/sendSessionMessage/%s?messageText=%s",
		strings.TrimRight(creds.Endpoint, "/"), waID, url.QueryEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return messaging.Failed(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Authorization", bearer(creds.AccessToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("Wati request failed")
		return messaging.Failed(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.WithField("status", resp.StatusCode).WithField("body", string(raw)).Warn("Wati rejected message")
		return messaging.Failed(fmt.Sprintf("wati status %d", resp.StatusCode))
	}

	var out sendSessionMessageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return messaging.Failed(fmt.Sprintf("decode response: %v", err))
	}
	if !out.Result {
		reason := out.Info
		if reason == "" {
			reason = "wati returned result=false"
		}
		c.log.WithField("info", out.Info).Warn("Wati did not accept message")
		return messaging.Failed(reason)
	}

	res := messaging.Result{Success: true}
	if out.Message != nil {
		res.MessageID = out.Message.ID
		if res.MessageID == "" {
			res.MessageID = out.Message.WhatsID
		}
	}
	return res
}

// bearer accepts tokens pasted with or without the scheme.
func bearer(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}
