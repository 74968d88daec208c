package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"banquet_crm/internal/app"
	"banquet_crm/internal/domain/lead"
	idb "banquet_crm/internal/infra/database"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LeadService is the part of app.LeadService the API needs.
type LeadService interface {
	CreateLead(ctx context.Context, in app.CreateLeadInput) (*app.CreateLeadResult, error)
	ChangeStage(ctx context.Context, id string, stage lead.Stage) (*lead.Lead, error)
}

// CreateLeadRequest is the body of POST /api/leads.
type CreateLeadRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Phone         string `json:"phone" validate:"required_without=Email,omitempty,max=32"`
	Email         string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Source        string `json:"source" validate:"max=100"`
	Notes         string `json:"notes" validate:"max=5000"`
	EventDate     string `json:"eventDate" validate:"omitempty,datetime=2006-01-02"`
	GuestCount    int    `json:"guestCount" validate:"gte=0,lte=100000"`
	SiteVisitDate string `json:"siteVisitDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Assignee      string `json:"assignee" validate:"max=100"`
	// Inbound marks public-form submissions, which get the WhatsApp greeting.
	Inbound bool `json:"inbound"`
}

type assignmentResponse struct {
	Assignee string `json:"assignee,omitempty"`
	Method   string `json:"method"`
}

type CreateLeadResponse struct {
	Lead          *lead.Lead          `json:"lead"`
	Duplicate     bool                `json:"duplicate"`
	Assignment    *assignmentResponse `json:"assignment,omitempty"`
	FailedEffects []string            `json:"failedEffects,omitempty"`
}

type changeStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type LeadHandler struct {
	leads LeadService
	val   *validator.Validate
	loc   *time.Location
	log   logrus.FieldLogger
}

func NewLeadHandler(leads LeadService, val *validator.Validate, loc *time.Location, log logrus.FieldLogger) *LeadHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &LeadHandler{leads: leads, val: val, loc: loc, log: log}
}

// Create handles POST /api/leads. A duplicate phone answers 200 with the existing lead.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.val.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	in := app.CreateLeadInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Source:     req.Source,
		Notes:      req.Notes,
		GuestCount: req.GuestCount,
		Assignee:   req.Assignee,
		Inbound:    req.Inbound,
	}
	if req.EventDate != "" {
		d, _ := time.ParseInLocation("2006-01-02", req.EventDate, h.loc)
		in.EventDate = &d
	}
	if req.SiteVisitDate != "" {
		d, _ := time.Parse(time.RFC3339, req.SiteVisitDate)
		in.SiteVisitDate = &d
	}

	res, err := h.leads.CreateLead(r.Context(), in)
	if err != nil {
		if errors.Is(err, app.ErrInvalidLead) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.WithError(err).Error("Failed to create lead")
		writeError(w, http.StatusInternalServerError, "failed to create lead")
		return
	}

	resp := CreateLeadResponse{Lead: res.Lead, Duplicate: res.Duplicate}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Assignment = &assignmentResponse{Assignee: res.Decision.Assignee, Method: string(res.Decision.Method)}
	for _, e := range res.FailedEffects() {
		resp.FailedEffects = append(resp.FailedEffects, e.Name)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ChangeStage handles PATCH /api/leads/{id}/stage.
func (h *LeadHandler) ChangeStage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	var req changeStageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.val.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	l, err := h.leads.ChangeStage(r.Context(), id, lead.Stage(req.Stage))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, l)
	case errors.Is(err, app.ErrInvalidStage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, idb.ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
	default:
		h.log.WithError(err).WithField("lead_id", id).Error("Failed to change lead stage")
		writeError(w, http.StatusInternalServerError, "failed to change stage")
	}
}

// validationMessage lists the failing fields by their JSON names.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// NewValidator reports JSON field names in validation errors.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
