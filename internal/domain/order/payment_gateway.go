package order

import (
	"context"
	"errors"

	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Gateway errors
var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayUnavailable     = errors.New("payment: gateway temporarily unavailable")
	ErrGatewayRequestFailed   = errors.New("payment: gateway request failed")
	ErrGatewayInvalidResponse = errors.New("payment: invalid gateway response")
)

// CreatePaymentRequest asks the gateway for a hosted payment page
type CreatePaymentRequest struct {
	OrderID uuid.UUID
	Amount  valueobject.Money
}

// CreatePaymentResponse is the hosted page the customer is sent to
type CreatePaymentResponse struct {
	PaymentID string
	Link      string
}

// VerifyPaymentResponse is the gateway's view of a payment
type VerifyPaymentResponse struct {
	PaymentID string
	Paid      bool
	Status    string
	OrderID   *uuid.UUID
}

// PaymentGateway creates and verifies online payments
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	VerifyPayment(ctx context.Context, paymentID string) (*VerifyPaymentResponse, error)
}
