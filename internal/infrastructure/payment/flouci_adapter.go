// Package payment integrates the Flouci online payment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/google/uuid"
)

const (
	flouciAPIBaseURL      = "https://developers.flouci.com"
	flouciGeneratePath    = "/api/generate_payment"
	flouciVerifyPath      = "/api/verify_payment/%s"
	flouciStatusSuccess   = "SUCCESS"
	defaultSessionTimeout = 20 * time.Minute
)

// Configuration errors
var (
	ErrFlouciMissingAppToken  = errors.New("flouci: missing app token")
	ErrFlouciMissingAppSecret = errors.New("flouci: missing app secret")
)

// FlouciAdapter implements order.PaymentGateway for Flouci
type FlouciAdapter struct {
	baseURL        string
	appToken       string
	appSecret      string
	successLink    string
	failLink       string
	sessionTimeout time.Duration
	acceptCard     bool
	httpClient     *http.Client
}

// NewFlouciAdapter creates a new Flouci adapter
func NewFlouciAdapter(cfg config.FlouciConfig) (*FlouciAdapter, error) {
	if cfg.AppToken == "" {
		return nil, ErrFlouciMissingAppToken
	}
	if cfg.AppSecret == "" {
		return nil, ErrFlouciMissingAppSecret
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = flouciAPIBaseURL
	}
	sessionTimeout := cfg.SessionTimeout
	if sessionTimeout <= 0 {
		sessionTimeout = defaultSessionTimeout
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FlouciAdapter{
		baseURL:        baseURL,
		appToken:       cfg.AppToken,
		appSecret:      cfg.AppSecret,
		successLink:    cfg.SuccessLink,
		failLink:       cfg.FailLink,
		sessionTimeout: sessionTimeout,
		acceptCard:     cfg.AcceptCard,
		httpClient:     &http.Client{Timeout: timeout},
	}, nil
}

// CreatePayment requests a hosted payment page. Flouci expects the amount
// in millimes.
func (a *FlouciAdapter) CreatePayment(ctx context.Context, req order.CreatePaymentRequest) (*order.CreatePaymentResponse, error) {
	if req.OrderID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing order id", order.ErrGatewayRequestFailed)
	}
	millimes := req.Amount.Millimes()
	if millimes <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", order.ErrGatewayRequestFailed)
	}

	body, err := json.Marshal(flouciGenerateRequest{
		AppToken:            a.appToken,
		AppSecret:           a.appSecret,
		Amount:              strconv.FormatInt(millimes, 10),
		AcceptCard:          strconv.FormatBool(a.acceptCard),
		SessionTimeoutSecs:  int(a.sessionTimeout / time.Second),
		SuccessLink:         a.successLink,
		FailLink:            a.failLink,
		DeveloperTrackingID: req.OrderID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("flouci: failed to encode request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, flouciGeneratePath, body)
	if err != nil {
		return nil, err
	}

	var resp flouciGenerateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrGatewayInvalidResponse, err)
	}
	if resp.Result.PaymentID == "" || resp.Result.Link == "" {
		return nil, fmt.Errorf("%w: missing payment id or link", order.ErrGatewayInvalidResponse)
	}
	return &order.CreatePaymentResponse{
		PaymentID: resp.Result.PaymentID,
		Link:      resp.Result.Link,
	}, nil
}

// VerifyPayment asks Flouci for the status of a payment
func (a *FlouciAdapter) VerifyPayment(ctx context.Context, paymentID string) (*order.VerifyPaymentResponse, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: missing payment id", order.ErrGatewayRequestFailed)
	}

	respBody, err := a.doRequest(ctx, http.MethodGet, fmt.Sprintf(flouciVerifyPath, paymentID), nil)
	if err != nil {
		return nil, err
	}

	var resp flouciVerifyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrGatewayInvalidResponse, err)
	}

	result := &order.VerifyPaymentResponse{
		PaymentID: paymentID,
		Status:    resp.Result.Status,
		Paid:      strings.EqualFold(resp.Result.Status, flouciStatusSuccess),
	}
	if id, err := uuid.Parse(resp.Result.DeveloperTrackingID); err == nil {
		result.OrderID = &id
	}
	return result, nil
}

// doRequest performs an HTTP request to the Flouci API
func (a *FlouciAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("flouci: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apppublic", a.appToken)
	req.Header.Set("appsecret", a.appSecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("flouci: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp flouciErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return nil, fmt.Errorf("%w: HTTP %d - %s", order.ErrGatewayRequestFailed, resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", order.ErrGatewayRequestFailed, resp.StatusCode)
	}

	return respBody, nil
}

var _ order.PaymentGateway = (*FlouciAdapter)(nil)
