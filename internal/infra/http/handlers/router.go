package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// RouterDeps are the handlers mounted by NewRouter. A nil WebSocket disables /ws.
type RouterDeps struct {
	Leads          *LeadHandler
	Notifications  *NotificationHandler
	WhatsApp       *WhatsAppWebhookHandler
	Meta           *MetaWebhookHandler
	Sweeps         *SweepHandler
	WebSocket      http.HandlerFunc
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SweepSecretHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/leads", d.Leads.Create)
		r.Patch("/leads/{id}/stage", d.Leads.ChangeStage)

		r.Get("/notifications", d.Notifications.List)
		r.Post("/notifications/read-all", d.Notifications.MarkAllRead)
		r.Post("/notifications/{id}/read", d.Notifications.MarkRead)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/whatsapp", d.WhatsApp.Health)
		r.Post("/whatsapp", d.WhatsApp.Receive)
		r.Get("/meta", d.Meta.Verify)
		r.Post("/meta", d.Meta.Receive)
	})

	r.Post("/internal/sweeps/{name}", d.Sweeps.Run)

	if d.WebSocket != nil {
		r.Get("/ws", d.WebSocket)
	}
	return r
}

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("HTTP request")
		})
	}
}
