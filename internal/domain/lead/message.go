package lead

import "time"

// Direction of a conversation entry relative to the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is one append-only conversation entry of a lead.
type Message struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"leadId"`
	Direction  Direction `json:"direction"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"externalId,omitempty"`
	Text       string    `json:"text,omitempty"`
	MediaURL   string    `json:"mediaUrl,omitempty"`
	SenderName string    `json:"senderName,omitempty"`
	SentAt     time.Time `json:"sentAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Activity is the denormalized last-message state kept on the lead.
type Activity struct {
	Preview   string
	At        time.Time
	Direction Direction
}

const previewLimit = 120

// PreviewOf trims message text to the preview length stored on the lead.
func PreviewOf(text string) string {
	r := []rune(text)
	if len(r) <= previewLimit {
		return text
	}
	return string(r[:previewLimit])
}
