// Package aisensy triggers WhatsApp template campaigns through the Aisensy API.
package aisensy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"banquet_crm/internal/domain/messaging"
	"banquet_crm/internal/domain/settings"
	"banquet_crm/internal/infra/phone"

	"github.com/sirupsen/logrus"
)

const DefaultEndpoint = "https://backend.aisensy.com/campaign/t1/api/v2"

type Client struct {
	endpoint string
	http     *http.Client
	log      logrus.FieldLogger
}

func NewClient(endpoint string, log logrus.FieldLogger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log.WithField("provider", "aisensy"),
	}
}

// SendCampaign sends the configured campaign template to one destination.
func (c *Client) SendCampaign(ctx context.Context, creds settings.AisensySettings, to, userName string, params []string) messaging.Result {
	if !creds.Configured() {
		return messaging.Failed("aisensy credentials not configured")
	}
	if params == nil {
		params = []string{}
	}

	payload := campaignRequest{
		APIKey:         creds.APIKey,
		CampaignName:   creds.CampaignName,
		Destination:    phone.Digits(to),
		UserName:       userName,
		TemplateParams: params,
		Source:         "crm",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return messaging.Failed(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return messaging.Failed(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("Aisensy request failed")
		return messaging.Failed(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out campaignResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !out.ok() {
		reason := out.ErrorMessage
		if reason == "" {
			reason = out.Message
		}
		if reason == "" {
			reason = fmt.Sprintf("aisensy status %d", resp.StatusCode)
		}
		c.log.WithField("status", resp.StatusCode).WithField("body", string(raw)).Warn("Aisensy rejected campaign")
		return messaging.Failed(reason)
	}
	return messaging.Result{Success: true, MessageID: out.SubmittedMessageID}
}
