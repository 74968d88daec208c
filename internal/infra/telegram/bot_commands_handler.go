// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"banquet_crm/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Admin is the operator surface of the staff bot.
type Admin interface {
	IsAdmin(telegramID int64) bool
	RunSweep(ctx context.Context, performingAdminID int64, name string) (*app.SweepReport, error)
}

func RegisterBotCommands(b *telebot.Bot, admin Admin, baseLogger logrus.FieldLogger) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")
	b.Handle("/start", startHandler(admin, startHelpLogger))
	b.Handle("/help", helpHandler(admin, startHelpLogger))
}

func startHandler(admin Admin, logger logrus.FieldLogger) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := logger.WithFields(logrus.Fields{"command": "/start", "sender_id": senderID})
		logCtx.Info("Processing /start command")

		if admin.IsAdmin(senderID) {
			return c.Send(fmt.Sprintf("Hello %s! Lead alerts are on. Use /help to see the admin commands.", c.Sender().FirstName))
		}
		return c.Send(fmt.Sprintf("Hello! This bot posts lead escalations for the sales team. Your Telegram ID is %d; "+
			"share it with the administrator if you should have access.", senderID))
	}
}

func helpHandler(admin Admin, logger logrus.FieldLogger) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logger.WithFields(logrus.Fields{"command": "/help", "sender_id": senderID}).Info("Processing /help command")

		if !admin.IsAdmin(senderID) {
			return c.Send("No commands are available to you. Escalations are posted to the staff chat automatically.")
		}
		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/sweep <stale|site_visits|quotes>`\n - Run a reminder sweep now.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
}
