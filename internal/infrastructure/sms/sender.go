// Package sms sends text messages to drivers and customers.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// HTTPSender posts messages to a JSON SMS gateway
type HTTPSender struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

type messageRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// NewSender returns an HTTPSender when a gateway is configured and a
// LogSender otherwise.
func NewSender(cfg config.SMSConfig, logger *zap.Logger) dispatch.SMSSender {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		logger.Warn("SMS gateway not configured, messages will only be logged")
		return NewLogSender(logger)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts {from,to,text} to {base_url}/messages
func (s *HTTPSender) Send(ctx context.Context, to, text string) error {
	body, err := json.Marshal(messageRequest{From: s.from, To: to, Text: text})
	if err != nil {
		return fmt.Errorf("sms: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sms: %v", dispatch.ErrNotifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: sms gateway returned %d: %s", dispatch.ErrNotifierUnavailable, resp.StatusCode, raw)
		}
		return fmt.Errorf("%w: sms gateway returned %d: %s", dispatch.ErrNotifierRejected, resp.StatusCode, raw)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message
func (s *LogSender) Send(_ context.Context, to, text string) error {
	s.logger.Info("SMS (not sent)", zap.String("to", to), zap.String("text", text))
	return nil
}

var (
	_ dispatch.SMSSender = (*HTTPSender)(nil)
	_ dispatch.SMSSender = (*LogSender)(nil)
)
