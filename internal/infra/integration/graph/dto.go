package graph

import "strings"

// FieldData is one answered question of a lead-gen form.
type FieldData struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// LeadgenLead is a lead-gen form submission as returned by the Graph API.
type LeadgenLead struct {
	ID          string      `json:"id"`
	CreatedTime string      `json:"created_time"`
	FormID      string      `json:"form_id"`
	Platform    string      `json:"platform"`
	FieldData   []FieldData `json:"field_data"`
}

// Field returns the first value of a form field, matching names case-insensitively.
func (l *LeadgenLead) Field(names ...string) string {
	for _, name := range names {
		for _, f := range l.FieldData {
			if strings.EqualFold(f.Name, name) && len(f.Values) > 0 {
				return strings.TrimSpace(f.Values[0])
			}
		}
	}
	return ""
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}
