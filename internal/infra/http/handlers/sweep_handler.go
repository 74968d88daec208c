package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"banquet_crm/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// SweepSecretHeader carries the shared secret for externally triggered sweeps.
const SweepSecretHeader = "X-Sweep-Secret"

type SweepHandler struct {
	sweeps app.SweepRunner
	secret string
	log    logrus.FieldLogger
}

// NewSweepHandler requires the secret header only when secret is non-empty.
func NewSweepHandler(sweeps app.SweepRunner, secret string, log logrus.FieldLogger) *SweepHandler {
	return &SweepHandler{sweeps: sweeps, secret: secret, log: log}
}

// Run handles POST /internal/sweeps/{name}.
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SweepSecretHeader)), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid sweep secret")
		return
	}

	name := chi.URLParam(r, "name")
	report, err := h.sweeps.Run(r.Context(), name)
	if err != nil {
		if errors.Is(err, app.ErrUnknownSweep) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.WithError(err).WithField("sweep", name).Error("Triggered sweep failed")
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
