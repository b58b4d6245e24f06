package order

import (
	"context"
	"errors"
	"strings"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPaymentUnavailable is returned when no gateway is configured
var ErrPaymentUnavailable = shared.NewDomainError("PAYMENT_UNAVAILABLE", "Online payment is not available")

// InitiatePayment creates a hosted Flouci payment for an order
func (s *Service) InitiatePayment(ctx context.Context, id uuid.UUID) (*PaymentLinkResponse, error) {
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != order.PaymentMethodFlouci {
		return nil, shared.NewDomainError("INVALID_STATE", "Cash orders are paid on delivery")
	}
	if o.PaymentStatus == order.PaymentStatusPaid {
		return nil, shared.NewDomainError("INVALID_STATE", "Order is already paid")
	}

	created, err := s.gateway.CreatePayment(ctx, order.CreatePaymentRequest{
		OrderID: o.ID,
		Amount:  o.TotalMoney(),
	})
	if err != nil {
		return nil, gatewayError(err)
	}
	if err := o.StartPayment(created.PaymentID); err != nil {
		return nil, err
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordPayment(ctx, string(o.PaymentMethod), string(order.PaymentStatusPending))
	}
	s.logger.Info("payment initiated",
		zap.String("order_id", o.ID.String()),
		zap.String("payment_id", created.PaymentID),
		zap.Int64("amount_millimes", o.TotalMoney().Millimes()))

	return &PaymentLinkResponse{Link: created.Link, PaymentID: created.PaymentID}, nil
}

// VerifyPayment asks the gateway for the outcome of a payment and records
// it on the order
func (s *Service) VerifyPayment(ctx context.Context, paymentID string) (*PaymentVerifyResponse, error) {
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "payment_id is required")
	}

	result, err := s.gateway.VerifyPayment(ctx, paymentID)
	if err != nil {
		return nil, gatewayError(err)
	}

	o, err := s.orderForPayment(ctx, paymentID, result.OrderID)
	if err != nil {
		return nil, err
	}

	if result.Paid {
		o.MarkPaid()
	} else {
		o.MarkPaymentFailed()
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordPayment(ctx, string(o.PaymentMethod), string(o.PaymentStatus))
	}
	s.logger.Info("payment verified",
		zap.String("order_id", o.ID.String()),
		zap.String("payment_id", paymentID),
		zap.String("gateway_status", result.Status),
		zap.String("payment_status", string(o.PaymentStatus)))

	return &PaymentVerifyResponse{
		OrderID:       o.ID,
		PaymentID:     paymentID,
		PaymentStatus: string(o.PaymentStatus),
		Paid:          o.PaymentStatus == order.PaymentStatusPaid,
	}, nil
}

// orderForPayment finds the order by the gateway's tracking id, falling
// back to the stored payment id
func (s *Service) orderForPayment(ctx context.Context, paymentID string, orderID *uuid.UUID) (*order.Order, error) {
	if orderID != nil {
		o, err := s.orders.FindByID(ctx, *orderID)
		if err == nil && o.PaymentID == paymentID {
			return o, nil
		}
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	filter := shared.Where("payment_id", paymentID)
	filter.PageSize = 1
	orders, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, shared.ErrNotFound
	}
	return &orders[0], nil
}

func gatewayError(err error) error {
	switch {
	case errors.Is(err, order.ErrGatewayNotConfigured):
		return ErrPaymentUnavailable
	case errors.Is(err, order.ErrGatewayUnavailable):
		return shared.NewDomainError("PAYMENT_GATEWAY_UNAVAILABLE", "Payment provider is temporarily unavailable")
	default:
		return shared.NewDomainError("PAYMENT_GATEWAY_ERROR", err.Error())
	}
}
