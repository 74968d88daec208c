package handlers

import (
	"context"
	"io"
	"net/http"

	"banquet_crm/internal/app"
	"banquet_crm/internal/infra/webhook"

	"github.com/sirupsen/logrus"
)

type MetaLeadService interface {
	VerifySubscription(ctx context.Context, mode, token string) (bool, error)
	Import(ctx context.Context, changes []webhook.LeadgenChange) (*app.MetaImportReport, error)
}

type MetaWebhookHandler struct {
	meta MetaLeadService
	log  logrus.FieldLogger
}

func NewMetaWebhookHandler(meta MetaLeadService, log logrus.FieldLogger) *MetaWebhookHandler {
	return &MetaWebhookHandler{meta: meta, log: log}
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *MetaWebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ok, err := h.meta.VerifySubscription(r.Context(), q.Get("hub.mode"), q.Get("hub.verify_token"))
	if err != nil {
		h.log.WithError(err).Error("Failed to verify Meta subscription")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive imports lead-gen changes.
func (h *MetaWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	changes, err := webhook.DecodeLeadgen(body)
	if err != nil {
		h.log.WithError(err).Warn("Malformed Meta webhook payload")
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	report, err := h.meta.Import(r.Context(), changes)
	if err != nil {
		h.log.WithError(err).Error("Failed to import Meta leads")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.log.WithFields(logrus.Fields{
		"received":   report.Received,
		"created":    report.Created,
		"duplicates": report.Duplicates,
		"failed":     report.Failed,
	}).Info("Meta lead-gen changes processed")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "created": report.Created})
}
