package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"orders/internal/apperror"
	"orders/internal/models"
	"orders/internal/services"
	"orders/pkg/rabbitmq"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// PaymentEventHandler applies "payment succeeded" events to orders.
type PaymentEventHandler struct {
	service *services.OrderService
	log     *zap.Logger
}

// NewPaymentEventHandler creates a new PaymentEventHandler.
func NewPaymentEventHandler(service *services.OrderService, log *zap.Logger) *PaymentEventHandler {
	return &PaymentEventHandler{service: service, log: log}
}

// Handle processes one delivery. A nil return acks it. Events that can never
// apply (malformed, unknown or cancelled order) are rejected to the
// dead-letter queue; every other failure is requeued for redelivery.
func (h *PaymentEventHandler) Handle(ctx context.Context, d amqp.Delivery) error {
	var event models.PaymentSucceeded
	if err := json.Unmarshal(d.Body, &event); err != nil {
		h.log.Warn("malformed payment event", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
		return rabbitmq.Reject(fmt.Errorf("malformed payment event: %w", err))
	}

	order, err := h.service.PaidOrder(ctx, event)
	if err != nil {
		switch apperror.KindOf(err) {
		case apperror.KindValidation, apperror.KindNotFound, apperror.KindInvalidTransition:
			h.log.Error("payment event rejected",
				zap.String("order_id", event.OrderID),
				zap.String("payment_reference", event.PaymentReference),
				zap.Error(err))
			return rabbitmq.Reject(err)
		}
		return err
	}
	h.log.Debug("payment event applied", zap.String("order_id", order.ID), zap.Uint64("delivery_tag", d.DeliveryTag))
	return nil
}
