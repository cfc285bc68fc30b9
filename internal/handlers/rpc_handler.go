package handlers

import (
	"context"
	"fmt"

	"orders/internal/apperror"
	"orders/internal/models"
	"orders/internal/services"
	"orders/pkg/rabbitmq"

	"go.uber.org/zap"
)

const entityName = "orders"

// Inbound operation names, "<entity>_<action>".
var (
	PatternCreate               = actionName("create")
	PatternFindAll              = actionName("findAll")
	PatternFindOne              = actionName("findOne")
	PatternChangeOrderStatus    = actionName("changeOrderStatus")
	PatternCreatePaymentSession = actionName("createPaymentSession")
)

func actionName(action string) string {
	return fmt.Sprintf("%s_%s", entityName, action)
}

// RPCHandler serves the order operations over the message transport.
type RPCHandler struct {
	service *services.OrderService
	log     *zap.Logger
}

// NewRPCHandler creates a new RPCHandler.
func NewRPCHandler(service *services.OrderService, log *zap.Logger) *RPCHandler {
	return &RPCHandler{service: service, log: log}
}

// Handle dispatches one request by pattern.
func (h *RPCHandler) Handle(ctx context.Context, pattern string, body []byte) (any, error) {
	h.log.Debug("rpc request", zap.String("pattern", pattern))
	switch pattern {
	case PatternCreate:
		var req CreateOrderRequest
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		return h.service.CreateOrder(ctx, req.Items)

	case PatternFindAll:
		var req FindAllRequest
		if len(body) > 0 {
			if err := decode(body, &req); err != nil {
				return nil, err
			}
		}
		return h.service.FindAll(ctx, req.Pagination())

	case PatternFindOne:
		var req FindOneRequest
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		return h.service.FindOne(ctx, req.ID)

	case PatternChangeOrderStatus:
		var req ChangeOrderStatusRequest
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		return h.service.ChangeOrderStatus(ctx, req.ID, models.OrderStatus(req.Status))

	case PatternCreatePaymentSession:
		var req FindOneRequest
		if err := decode(body, &req); err != nil {
			return nil, err
		}
		session, err := h.service.CreatePaymentSession(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"paymentSession": session}, nil
	}
	return nil, apperror.Validation("unknown pattern %q", pattern)
}

// EncodeError converts a handler error into the reply error envelope.
func (h *RPCHandler) EncodeError(err error) *rabbitmq.RemoteError {
	resp := NewErrorResponse(err)
	if resp.StatusCode >= 500 {
		h.log.Error("rpc request failed", zap.Error(err))
	}
	return &rabbitmq.RemoteError{Kind: string(resp.Kind), StatusCode: resp.StatusCode, Message: resp.Message}
}
