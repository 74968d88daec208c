package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"banquet_crm/internal/domain/notification"
	idb "banquet_crm/internal/infra/database"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type NotificationService interface {
	ListForRecipient(ctx context.Context, userName, role string, limit int) ([]*notification.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userName, role string) (int64, error)
}

type NotificationHandler struct {
	notifications NotificationService
	log           logrus.FieldLogger
}

func NewNotificationHandler(ns NotificationService, log logrus.FieldLogger) *NotificationHandler {
	return &NotificationHandler{notifications: ns, log: log}
}

// List handles GET /api/notifications?user=&role=&limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, role := q.Get("user"), q.Get("role")
	if user == "" && role == "" {
		writeError(w, http.StatusBadRequest, "user or role is required")
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := h.notifications.ListForRecipient(r.Context(), user, role, limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to list notifications")
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if list == nil {
		list = []*notification.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err := h.notifications.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, idb.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.log.WithError(err).WithField("notification_id", id).Error("Failed to mark notification read")
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all?user=&role=.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n, err := h.notifications.MarkAllRead(r.Context(), q.Get("user"), q.Get("role"))
	if err != nil {
		h.log.WithError(err).Error("Failed to mark notifications read")
		writeError(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
