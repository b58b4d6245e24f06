package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	driverapp "github.com/delivery/backend/internal/application/driver"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Update is the part of a Telegram webhook update the bot understands
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an incoming chat message
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Chat identifies a Telegram chat
type Chat struct {
	ID int64 `json:"id"`
}

// CallbackQuery is a press on an inline button with callback data
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message,omitempty"`
	From    struct {
		ID int64 `json:"id"`
	} `json:"from"`
}

// TelegramLinker links a chat to the driver owning a phone number
type TelegramLinker interface {
	LinkTelegram(ctx context.Context, phone, chatID string) (*driverapp.DriverResponse, error)
}

// SetLinker enables /start <phone> in the webhook
func (s *Service) SetLinker(l TelegramLinker) {
	s.linker = l
}

// HandleUpdate processes a webhook update. Failures are reported to the
// chat; only infrastructure errors are returned.
func (s *Service) HandleUpdate(ctx context.Context, u Update) error {
	switch {
	case u.CallbackQuery != nil:
		return s.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		return s.handleMessage(ctx, u.Message)
	}
	return nil
}

func (s *Service) handleMessage(ctx context.Context, m *Message) error {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/start") || s.telegram == nil {
		return nil
	}
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	phone := strings.TrimSpace(strings.TrimPrefix(text, "/start"))
	if phone == "" {
		return s.reply(ctx, chatID, "Send /start followed by your phone number to receive orders.")
	}
	if s.linker == nil {
		return nil
	}
	d, err := s.linker.LinkTelegram(ctx, phone, chatID)
	switch {
	case errors.Is(err, driver.ErrTelegramAlreadyLinked):
		return s.reply(ctx, chatID, "This driver account is already linked to another Telegram chat. Contact an administrator to move it.")
	case err != nil:
		if _, ok := shared.AsDomainError(err); ok {
			return s.reply(ctx, chatID, "No driver account found for this phone number.")
		}
		return fmt.Errorf("link telegram: %w", err)
	}
	return s.reply(ctx, chatID, fmt.Sprintf("Hello %s, you will now receive order offers here.", d.Name))
}

func (s *Service) handleCallback(ctx context.Context, q *CallbackQuery) error {
	if s.telegram == nil {
		return nil
	}
	action, rawID, _ := strings.Cut(q.Data, ":")
	orderID, err := uuid.Parse(rawID)
	if err != nil || (action != "accept" && action != "refuse") {
		return s.telegram.AnswerCallbackQuery(ctx, q.ID, "Unknown action")
	}
	chatID := strconv.FormatInt(q.From.ID, 10)
	d, err := s.drivers.FindByTelegramID(ctx, chatID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return s.telegram.AnswerCallbackQuery(ctx, q.ID, "This chat is not linked to a driver")
		}
		return err
	}

	if action == "refuse" {
		res, err := s.Refuse(ctx, orderID, d.ID)
		switch {
		case err != nil:
			s.logger.Warn("telegram refuse", zap.String("order_id", orderID.String()), zap.Error(err))
			return s.telegram.AnswerCallbackQuery(ctx, q.ID, "Could not refuse this order")
		case res.TakenByOther:
			return s.telegram.AnswerCallbackQuery(ctx, q.ID, "Order already taken")
		case res.Next == nil:
			return s.telegram.AnswerCallbackQuery(ctx, q.ID, "You already accepted this order")
		}
		return s.telegram.AnswerCallbackQuery(ctx, q.ID, "Order refused")
	}

	res, err := s.Accept(ctx, orderID, d.ID)
	if err != nil {
		if errors.Is(err, ErrOrderTaken) {
			return s.telegram.AnswerCallbackQuery(ctx, q.ID, "Order already taken")
		}
		s.logger.Warn("telegram accept", zap.String("order_id", orderID.String()), zap.Error(err))
		return s.telegram.AnswerCallbackQuery(ctx, q.ID, "Could not accept this order")
	}
	if err := s.telegram.AnswerCallbackQuery(ctx, q.ID, "Order accepted"); err != nil {
		return err
	}
	return s.reply(ctx, chatID, fmt.Sprintf("Open your deliveries: %s", res.RedirectURL))
}

func (s *Service) reply(ctx context.Context, chatID, text string) error {
	if _, err := s.telegram.SendMessage(ctx, chatID, text, nil); err != nil {
		s.logger.Warn("telegram reply", zap.String("chat_id", chatID), zap.Error(err))
	}
	return nil
}
