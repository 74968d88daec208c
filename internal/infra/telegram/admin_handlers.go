package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"banquet_crm/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgNotAuthorized = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers the operator commands. ctx bounds the work they start.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, admin Admin, baseLogger logrus.FieldLogger) {
	b.Handle("/sweep", sweepHandler(ctx, admin, baseLogger))
}

func sweepHandler(ctx context.Context, admin Admin, baseLogger logrus.FieldLogger) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sweep",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if !admin.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgNotAuthorized)
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid format. Use: /sweep <stale|site_visits|quotes>")
		}
		name := strings.ToLower(strings.TrimSpace(args[0]))
		handlerLogger = handlerLogger.WithField("sweep", name)

		report, err := admin.RunSweep(ctx, c.Sender().ID, name)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send(msgNotAuthorized)
			case errors.Is(err, app.ErrUnknownSweep):
				return c.Send(fmt.Sprintf("Unknown sweep %q. Use stale, site_visits or quotes.", name))
			default:
				logWithError.Error("Sweep failed")
				return c.Send("The sweep failed, see the server log for details.")
			}
		}

		handlerLogger.WithField("notified", report.Notified).Info("Sweep run from Telegram")
		return c.Send(fmt.Sprintf("Sweep %s finished: %d scanned, %d notified, %d failed.",
			report.Sweep, report.Scanned, report.Notified, report.Failed))
	}
}
