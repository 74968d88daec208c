package handlers

import (
	"context"
	"io"
	"net/http"

	"banquet_crm/internal/app"
	"banquet_crm/internal/domain/settings"
	"banquet_crm/internal/infra/webhook"

	"github.com/sirupsen/logrus"
)

type InboundService interface {
	Handle(ctx context.Context, ev webhook.Event) (*app.InboundResult, error)
}

// WhatsAppWebhookHandler accepts Twilio, Wati and Aisensy deliveries on one URL.
type WhatsAppWebhookHandler struct {
	inbound  InboundService
	settings settings.Repository
	log      logrus.FieldLogger
}

func NewWhatsAppWebhookHandler(inbound InboundService, sr settings.Repository, log logrus.FieldLogger) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{inbound: inbound, settings: sr, log: log}
}

// Health answers the providers' GET probe.
func (h *WhatsAppWebhookHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Receive acknowledges every payload it understands or deliberately drops with 200,
// so providers do not retry. Only internal failures answer 500.
func (h *WhatsAppWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	cfg, err := h.settings.Load(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to load settings for webhook")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ev := webhook.Decode(body, r.Header.Get("Content-Type"), webhook.DecodeOptions{
		BusinessNumber: cfg.Integrations.Twilio.WhatsAppFrom,
	})
	res, err := h.inbound.Handle(r.Context(), ev)
	if err != nil {
		h.log.WithError(err).WithField("provider", ev.Provider).Error("Failed to handle webhook message")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := map[string]any{"ok": true, "handled": res.Handled}
	if res.Lead != nil {
		resp["leadId"] = res.Lead.ID
		resp["created"] = res.Created
	}
	if res.Reason != "" {
		resp["reason"] = res.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}
