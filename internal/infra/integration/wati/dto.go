package wati

type sendSessionMessageResponse struct {
	Result  bool        `json:"result"`
	Info    string      `json:"info"`
	Message *messageRef `json:"message"`
}

type messageRef struct {
	ID      string `json:"id"`
	WhatsID string `json:"whatsappMessageId"`
}
