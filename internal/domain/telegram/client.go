package telegram

// Client posts staff alerts into a Telegram chat.
// Implementations hide the bot library from the application layer.
type Client interface {
	SendText(chatID int64, text string) error
}
