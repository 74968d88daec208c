// Package graph reads lead-gen submissions from the Meta Graph API.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://graph.facebook.com/v19.0"

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
		log:     log.WithField("provider", "meta_graph"),
	}
}

// GetLead fetches one lead-gen submission by id.
func (c *Client) GetLead(ctx context.Context, accessToken, leadgenID string) (*LeadgenLead, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("meta page access token not configured")
	}
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("fields", "id,created_time,form_id,platform,field_data")
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(leadgenID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ge graphError
		if json.Unmarshal(raw, &ge) == nil && ge.Error != nil {
			c.log.WithField("leadgen_id", leadgenID).WithField("code", ge.Error.Code).Warn(ge.Error.Message)
			return nil, fmt.Errorf("graph error %d: %s", ge.Error.Code, ge.Error.Message)
		}
		return nil, fmt.Errorf("graph status %d", resp.StatusCode)
	}

	var lead LeadgenLead
	if err := json.Unmarshal(raw, &lead); err != nil {
		return nil, fmt.Errorf("decode graph lead: %w", err)
	}
	return &lead, nil
}
