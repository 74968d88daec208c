package aisensy

type campaignRequest struct {
	APIKey         string   `json:"apiKey"`
	CampaignName   string   `json:"campaignName"`
	Destination    string   `json:"destination"`
	UserName       string   `json:"userName"`
	TemplateParams []string `json:"templateParams"`
	Source         string   `json:"source,omitempty"`
}

// campaignResponse tolerates "success" being sent as a bool or a string.
type campaignResponse struct {
	Success            any    `json:"success"`
	SubmittedMessageID string `json:"submitted_message_id"`
	Message            string `json:"message"`
	ErrorMessage       string `json:"errorMessage"`
}

func (r campaignResponse) ok() bool {
	switch v := r.Success.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return r.SubmittedMessageID != ""
	}
}
