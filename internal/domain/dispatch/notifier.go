package dispatch

import (
	"context"
	"errors"
)

// Notifier errors
var (
	ErrNotifierUnavailable = errors.New("notifier: service unavailable")
	ErrNotifierRejected    = errors.New("notifier: request rejected")
)

// Button is an inline keyboard button. Exactly one of URL or CallbackData is set.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// TelegramSender is the subset of the Telegram Bot API used by dispatch
type TelegramSender interface {
	// SendMessage sends an HTML message and returns its message id
	SendMessage(ctx context.Context, chatID, text string, buttons []Button) (int64, error)
	EditMessageText(ctx context.Context, chatID string, messageID int64, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// SMSSender delivers a text message to a phone number
type SMSSender interface {
	Send(ctx context.Context, to, text string) error
}
