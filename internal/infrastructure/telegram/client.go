// Package telegram is a small Telegram Bot API client used to offer orders
// to drivers and to notify the admin chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/infrastructure/config"
)

const defaultBaseURL = "https://api.telegram.org"

// ErrMissingBotToken is returned when the client is built without a token
var ErrMissingBotToken = errors.New("telegram: missing bot token")

// APIError is an ok=false answer from the Bot API
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed (%d): %s", e.Method, e.Code, e.Description)
}

// Unwrap lets callers match APIError against dispatch.ErrNotifierRejected
func (e *APIError) Unwrap() error {
	return dispatch.ErrNotifierRejected
}

// Client calls the Bot API at {base_url}/bot{token}/{method}
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a Bot API client
func NewClient(cfg config.TelegramConfig) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, ErrMissingBotToken
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   baseURL + "/bot" + cfg.BotToken + "/",
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type inlineButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// SendMessage sends an HTML message. Buttons are laid out on a single row.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, buttons []dispatch.Button) (int64, error) {
	req := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}
	if len(buttons) > 0 {
		row := make([]inlineButton, len(buttons))
		for i, b := range buttons {
			row[i] = inlineButton{Text: b.Text, URL: b.URL, CallbackData: b.CallbackData}
		}
		req.ReplyMarkup = &replyMarkup{InlineKeyboard: [][]inlineButton{row}}
	}

	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", req, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text of a sent message and drops its keyboard
func (c *Client) EditMessageText(ctx context.Context, chatID string, messageID int64, text string) error {
	return c.call(ctx, "editMessageText", editMessageRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: "HTML",
	}, nil)
}

// AnswerCallbackQuery acknowledges an inline button press
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text}, nil)
}

// SetWebhook registers the webhook URL with an optional secret token
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: []string{"message", "callback_query"},
	}, nil)
}

func (c *Client) call(ctx context.Context, method string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", dispatch.ErrNotifierUnavailable, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", dispatch.ErrNotifierUnavailable, method, err)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: %s returned HTTP %d", dispatch.ErrNotifierUnavailable, method, resp.StatusCode)
	}
	if !out.OK {
		return &APIError{Method: method, Code: out.ErrorCode, Description: out.Description}
	}
	if result != nil && len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("telegram: decode %s result: %w", method, err)
		}
	}
	return nil
}

var _ dispatch.TelegramSender = (*Client)(nil)
