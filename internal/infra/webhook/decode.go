package webhook

import (
	"encoding/json"
	"mime"
	"net/url"
	"strconv"
	"strings"
	"time"

	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/infra/phone"
)

// Decode sniffs the payload shape. Probes run in order Twilio, Wati, Aisensy.
func Decode(body []byte, contentType string, opts DecodeOptions) Event {
	if isForm(contentType) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return unhandled("", "malformed form body")
		}
		fields := make(map[string]string, len(values))
		for k := range values {
			fields[k] = values.Get(k)
		}
		if ev, ok := decodeTwilio(fields, opts); ok {
			return ev
		}
		return unhandled("", "unrecognized form payload")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return unhandled("", "body is not a JSON object")
	}
	if ev, ok := decodeTwilio(stringFields(raw), opts); ok {
		return ev
	}
	if ev, ok := decodeWati(raw, body, opts); ok {
		return ev
	}
	if ev, ok := decodeAisensy(raw, body, opts); ok {
		return ev
	}
	return unhandled("", "unrecognized payload shape")
}

func isForm(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// stringFields keeps top-level string values only; Twilio JSON forwards are flat.
func stringFields(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if json.Unmarshal(v, &s) == nil {
			out[k] = s
		}
	}
	return out
}

func decodeTwilio(f map[string]string, opts DecodeOptions) (Event, bool) {
	sid := f["MessageSid"]
	if sid == "" {
		sid = f["SmsMessageSid"]
	}
	if sid == "" {
		return Event{}, false
	}

	status := strings.ToLower(f["MessageStatus"])
	if status == "" {
		status = strings.ToLower(f["SmsStatus"])
	}
	_, hasBody := f["Body"]
	if status != "" && status != "received" && !hasBody {
		return statusEvent(ProviderTwilio, sid, status), true
	}

	from := stripChannel(f["From"])
	to := stripChannel(f["To"])
	m := &InboundMessage{
		Provider:   ProviderTwilio,
		ExternalID: sid,
		Phone:      from,
		Direction:  lead.DirectionInbound,
		Text:       f["Body"],
		MediaURL:   f["MediaUrl0"],
		SenderName: f["ProfileName"],
		SentAt:     opts.now(),
	}
	if opts.BusinessNumber != "" && samePhone(from, opts.BusinessNumber) {
		m.Direction = lead.DirectionOutbound
		m.Phone = to
		m.SenderName = ""
	}
	return messageEvent(m), true
}

func stripChannel(addr string) string {
	if i := strings.Index(addr, ":"); i >= 0 {
		return addr[i+1:]
	}
	return addr
}

func samePhone(a, b string) bool {
	da, db := phone.Digits(a), phone.Digits(b)
	return da != "" && da == db
}

type watiPayload struct {
	ID                string          `json:"id"`
	WhatsappMessageID string          `json:"whatsappMessageId"`
	WaID              string          `json:"waId"`
	EventType         string          `json:"eventType"`
	Text              string          `json:"text"`
	Type              string          `json:"type"`
	Data              string          `json:"data"`
	SenderName        string          `json:"senderName"`
	Owner             bool            `json:"owner"`
	Timestamp         json.RawMessage `json:"timestamp"`
	StatusString      string          `json:"statusString"`
}

func decodeWati(raw map[string]json.RawMessage, body []byte, opts DecodeOptions) (Event, bool) {
	if _, ok := raw["waId"]; !ok {
		return Event{}, false
	}
	if _, ok := raw["eventType"]; !ok {
		return Event{}, false
	}
	var p watiPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return unhandled(ProviderWati, "malformed wati payload"), true
	}

	id := p.WhatsappMessageID
	if id == "" {
		id = p.ID
	}
	ev := strings.ToLower(p.EventType)
	switch {
	case strings.HasPrefix(ev, "sentmessage") || ev == "messagestatus":
		status := p.StatusString
		if status == "" {
			status = strings.TrimPrefix(ev, "sentmessage")
		}
		return statusEvent(ProviderWati, id, strings.ToLower(status)), true
	case ev == "message", ev == "sessionmessagesent", ev == "templatemessagesent":
	default:
		return unhandled(ProviderWati, "ignored wati event "+p.EventType), true
	}

	m := &InboundMessage{
		Provider:   ProviderWati,
		ExternalID: id,
		Phone:      p.WaID,
		Direction:  lead.DirectionInbound,
		Text:       p.Text,
		SenderName: p.SenderName,
		SentAt:     parseUnix(p.Timestamp, opts),
	}
	if p.Type != "" && p.Type != "text" {
		m.MediaURL = p.Data
	}
	if ev != "message" || p.Owner {
		m.Direction = lead.DirectionOutbound
		m.SenderName = ""
	}
	return messageEvent(m), true
}

type aisensyPayload struct {
	Topic string `json:"topic"`
	Data  struct {
		Message struct {
			ID             string          `json:"id"`
			MessageID      string          `json:"messageId"`
			PhoneNumber    string          `json:"phone_number"`
			UserName       string          `json:"userName"`
			MessageType    string          `json:"message_type"`
			Status         string          `json:"status"`
			SentAt         json.RawMessage `json:"sent_at"`
			MessageContent struct {
				Text string `json:"text"`
				URL  string `json:"url"`
			} `json:"message_content"`
		} `json:"message"`
	} `json:"data"`
}

func decodeAisensy(raw map[string]json.RawMessage, body []byte, opts DecodeOptions) (Event, bool) {
	if _, ok := raw["topic"]; !ok {
		return Event{}, false
	}
	if _, ok := raw["data"]; !ok {
		return Event{}, false
	}
	var p aisensyPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return unhandled(ProviderAisensy, "malformed aisensy payload"), true
	}

	msg := p.Data.Message
	id := msg.MessageID
	if id == "" {
		id = msg.ID
	}
	var dir lead.Direction
	switch strings.ToLower(p.Topic) {
	case "message.sender.user":
		dir = lead.DirectionInbound
	case "message.sender.business", "message.created":
		dir = lead.DirectionOutbound
	case "message.status.updated":
		return statusEvent(ProviderAisensy, id, strings.ToLower(msg.Status)), true
	default:
		return unhandled(ProviderAisensy, "ignored aisensy topic "+p.Topic), true
	}

	m := &InboundMessage{
		Provider:   ProviderAisensy,
		ExternalID: id,
		Phone:      msg.PhoneNumber,
		Direction:  dir,
		Text:       msg.MessageContent.Text,
		MediaURL:   msg.MessageContent.URL,
		SentAt:     parseUnix(msg.SentAt, opts),
	}
	if dir == lead.DirectionInbound {
		m.SenderName = msg.UserName
	}
	return messageEvent(m), true
}

// parseUnix reads seconds or milliseconds sent as a number or a numeric string.
func parseUnix(raw json.RawMessage, opts DecodeOptions) time.Time {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return opts.now()
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		return opts.now()
	}
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
