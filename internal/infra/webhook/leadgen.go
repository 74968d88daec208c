package webhook

import (
	"encoding/json"
	"fmt"
)

// LeadgenChange references one Meta lead-gen submission to fetch.
type LeadgenChange struct {
	LeadgenID string
	PageID    string
	FormID    string
}

type metaNotification struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				LeadgenID json.Number `json:"leadgen_id"`
				PageID    json.Number `json:"page_id"`
				FormID    json.Number `json:"form_id"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// DecodeLeadgen extracts the leadgen ids of a Meta change notification.
// Non-leadgen changes are skipped; only a malformed body is an error.
func DecodeLeadgen(body []byte) ([]LeadgenChange, error) {
	var n metaNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("decode meta notification: %w", err)
	}
	var out []LeadgenChange
	for _, entry := range n.Entry {
		for _, ch := range entry.Changes {
			if ch.Field != "leadgen" || ch.Value.LeadgenID == "" {
				continue
			}
			pageID := ch.Value.PageID.String()
			if pageID == "" {
				pageID = entry.ID
			}
			out = append(out, LeadgenChange{
				LeadgenID: ch.Value.LeadgenID.String(),
				PageID:    pageID,
				FormID:    ch.Value.FormID.String(),
			})
		}
	}
	return out, nil
}
