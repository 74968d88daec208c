package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"banquet_crm/internal/domain/settings"
	"banquet_crm/internal/infra/integration/graph"
	"banquet_crm/internal/infra/phone"
	"banquet_crm/internal/infra/webhook"

	"github.com/sirupsen/logrus"
)

const (
	SourceFacebook  = "Facebook"
	SourceInstagram = "Instagram"
)

// LeadFetcher reads a lead-gen submission from Meta.
type LeadFetcher interface {
	GetLead(ctx context.Context, accessToken, leadgenID string) (*graph.LeadgenLead, error)
}

// MetaImportReport counts what happened to one change notification.
type MetaImportReport struct {
	Received   int
	Created    int
	Duplicates int
	Failed     int
	Skipped    bool
}

type MetaLeadService struct {
	settings settings.Repository
	graph    LeadFetcher
	leadSvc  *LeadService
	log      logrus.FieldLogger
}

func NewMetaLeadService(sr settings.Repository, g LeadFetcher, ls *LeadService, log logrus.FieldLogger) *MetaLeadService {
	return &MetaLeadService{settings: sr, graph: g, leadSvc: ls, log: log}
}

// VerifySubscription answers Meta's hub.challenge handshake.
func (s *MetaLeadService) VerifySubscription(ctx context.Context, mode, token string) (bool, error) {
	if mode != "subscribe" {
		return false, nil
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	want := cfg.Integrations.Meta.VerifyToken
	return want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1, nil
}

// Import fetches and creates every referenced lead. Graph failures are counted, not returned.
func (s *MetaLeadService) Import(ctx context.Context, changes []webhook.LeadgenChange) (*MetaImportReport, error) {
	report := &MetaImportReport{Received: len(changes)}
	if len(changes) == 0 {
		return report, nil
	}
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	token := cfg.Integrations.Meta.PageAccessToken
	if token == "" {
		s.log.Warn("Meta page access token not configured, lead-gen changes ignored")
		report.Skipped = true
		return report, nil
	}

	for _, ch := range changes {
		logCtx := s.log.WithField("leadgen_id", ch.LeadgenID)
		gl, err := s.graph.GetLead(ctx, token, ch.LeadgenID)
		if err != nil {
			report.Failed++
			logCtx.WithError(err).Warn("Failed to fetch lead-gen submission")
			continue
		}
		res, err := s.leadSvc.CreateLead(ctx, MapLeadgen(gl))
		if err != nil {
			report.Failed++
			logCtx.WithError(err).Error("Failed to create lead from lead-gen submission")
			continue
		}
		if res.Duplicate {
			report.Duplicates++
			continue
		}
		report.Created++
	}
	return report, nil
}

var leadgenKnownFields = map[string]bool{
	"full_name": true, "first_name": true, "last_name": true, "name": true,
	"phone_number": true, "phone": true, "email": true,
	"event_date": true, "guest_count": true,
}

// MapLeadgen turns form answers into a lead. Unmapped answers go into the notes.
func MapLeadgen(gl *graph.LeadgenLead) CreateLeadInput {
	name := gl.Field("full_name", "name")
	if name == "" {
		name = strings.TrimSpace(gl.Field("first_name") + " " + gl.Field("last_name"))
	}
	in := CreateLeadInput{
		Name:        name,
		Phone:       gl.Field("phone_number", "phone"),
		Email:       gl.Field("email"),
		Source:      SourceFacebook,
		ExternalRef: gl.ID,
		Inbound:     true,
	}
	if p := strings.ToLower(gl.Platform); p == "ig" || p == "instagram" {
		in.Source = SourceInstagram
	}
	if d, ok := parseEventDate(gl.Field("event_date")); ok {
		in.EventDate = &d
	}
	if n, err := strconv.Atoi(phone.Digits(gl.Field("guest_count"))); err == nil {
		in.GuestCount = n
	}

	var extra []string
	for _, f := range gl.FieldData {
		if leadgenKnownFields[strings.ToLower(f.Name)] || len(f.Values) == 0 {
			continue
		}
		extra = append(extra, fmt.Sprintf("%s: %s", f.Name, strings.Join(f.Values, ", ")))
	}
	sort.Strings(extra)
	in.Notes = strings.Join(extra, "\n")
	return in
}

var eventDateLayouts = []string{"2006-01-02", "01/02/2006", "02-01-2006", time.RFC3339}

func parseEventDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
