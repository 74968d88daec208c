// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"
)

// sender is the part of *telebot.Bot the adapter uses.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements the staff-alert Client using gopkg.in/telebot.v3.
type TelebotAdapter struct {
	bot sender
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendText posts a plain message into a user, group or channel chat.
func (tba *TelebotAdapter) SendText(chatID int64, text string) error {
	_, err := tba.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}
