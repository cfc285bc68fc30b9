package services

import (
	"context"
	"errors"
	"time"

	"orders/internal/apperror"
	"orders/internal/clients"
	"orders/internal/metrics"
	"orders/internal/models"
	"orders/internal/repositories"

	"go.uber.org/zap"
)

// OrderService handles business logic related to orders: creation against
// the catalog, status changes and payment reconciliation.
type OrderService struct {
	orderRepo repositories.OrderRepository
	catalog   clients.ProductValidator
	payments  clients.PaymentSessionCreator
	currency  string
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	catalog clients.ProductValidator,
	payments clients.PaymentSessionCreator,
	currency string,
	log *zap.Logger,
	m *metrics.Metrics,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		catalog:   catalog,
		payments:  payments,
		currency:  currency,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// FailureInfo describes a failed step that did not fail the whole operation.
type FailureInfo struct {
	Kind    apperror.Kind `json:"kind"`
	Message string        `json:"message"`
}

// CreateResult is the outcome of CreateOrder. PaymentSession is nil when the
// payment service could not be reached; the order exists regardless.
type CreateResult struct {
	Order          *models.Order          `json:"order"`
	PaymentSession clients.PaymentSession `json:"paymentSession"`
	PaymentError   *FailureInfo           `json:"paymentError,omitempty"`
}

// CreateOrder validates the requested products, persists the order with its
// items and opens a payment session for it.
func (s *OrderService) CreateOrder(ctx context.Context, items []RequestedItem) (*CreateResult, error) {
	if len(items) == 0 {
		return nil, apperror.Validation("at least one item is required")
	}
	ids := make([]int, 0, len(items))
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, apperror.Validation("productId and quantity must be positive")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	built, err := BuildOrder(items, products)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err, "invalid order items")
	}

	if err := s.orderRepo.Create(ctx, built.Order); err != nil {
		s.log.Error("failed to persist order", zap.Error(err))
		return nil, apperror.Persistence(err, "failed to create order")
	}
	order := built.Order
	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("total_amount", order.TotalAmount.String()),
		zap.Int("total_items", order.TotalItems))

	result := &CreateResult{Order: order}
	session, err := s.payments.CreateSession(ctx, s.sessionRequest(order.ID, built.Lines))
	if err != nil {
		// The order stays PENDING; the session can be requested again later.
		kind, msg := apperror.Public(err)
		result.PaymentError = &FailureInfo{Kind: kind, Message: msg}
		s.metrics.OrdersCreated.WithLabelValues("failed").Inc()
		s.log.Warn("payment session not created", zap.String("order_id", order.ID), zap.Error(err))
		return result, nil
	}
	result.PaymentSession = session
	s.metrics.OrdersCreated.WithLabelValues("created").Inc()
	return result, nil
}

// FindAll returns a page of orders, optionally filtered by status.
func (s *OrderService) FindAll(ctx context.Context, p models.Pagination) (*models.OrderPage, error) {
	if p.Page < 1 || p.Limit < 1 {
		return nil, apperror.Validation("page and limit must be at least 1")
	}
	if p.Status != "" && !p.Status.Valid() {
		return nil, apperror.Validation("invalid status %q, valid statuses are %v", p.Status, models.OrderStatuses)
	}

	orders, total, err := s.orderRepo.List(ctx, p)
	if err != nil {
		return nil, apperror.Persistence(err, "failed to list orders")
	}
	return &models.OrderPage{Data: orders, Meta: models.NewPageMeta(total, p)}, nil
}

// FindOne returns an order with its items, each named from the current catalog.
func (s *OrderService) FindOne(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolveNames(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ChangeOrderStatus moves an order to status. Requesting the current status is
// a no-op. The write is conditional on the status read beforehand, so a
// concurrent change makes this call fail rather than overwrite it.
func (s *OrderService) ChangeOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperror.Validation("invalid status %q, valid statuses are %v", status, models.OrderStatuses)
	}

	current, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if !CanTransition(current.Status, status) {
		return nil, apperror.InvalidTransition("order %s cannot move from %s to %s", id, current.Status, status)
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, id, current.Status, status)
	if err != nil {
		return nil, s.storeError(err, id)
	}
	s.metrics.Transitions.WithLabelValues(string(current.Status), string(status), "manual").Inc()
	s.log.Info("order status changed",
		zap.String("order_id", id),
		zap.String("from", string(current.Status)),
		zap.String("status", string(status)))
	return updated, nil
}

// CreatePaymentSession requests a new checkout session for a PENDING order,
// using the prices stored on the order.
func (s *OrderService) CreatePaymentSession(ctx context.Context, id string) (clients.PaymentSession, error) {
	order, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, apperror.InvalidTransition("order %s is %s, payment is only possible while PENDING", id, order.Status)
	}

	lines := make([]models.PaymentLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, models.PaymentLine{Name: item.Name, Price: item.Price, Quantity: item.Quantity})
	}
	return s.payments.CreateSession(ctx, s.sessionRequest(order.ID, lines))
}

// PaidOrder applies a payment confirmation. Redelivering a confirmation for an
// order that is already PAID succeeds without writing anything.
func (s *OrderService) PaidOrder(ctx context.Context, event models.PaymentSucceeded) (*models.Order, error) {
	if event.OrderID == "" {
		return nil, apperror.Validation("orderId is required")
	}

	order, err := s.orderRepo.MarkPaid(ctx, event.OrderID, repositories.Payment{
		Reference:  event.PaymentReference,
		ReceiptURL: event.ReceiptURL,
		PaidAt:     s.now(),
	})
	if err == nil {
		s.metrics.Transitions.WithLabelValues(string(models.StatusPending), string(models.StatusPaid), "payment").Inc()
		s.metrics.PaymentEvents.WithLabelValues("applied").Inc()
		s.log.Info("order paid",
			zap.String("order_id", order.ID),
			zap.String("payment_reference", event.PaymentReference))
		return order, nil
	}
	if !errors.Is(err, repositories.ErrStatusConflict) {
		s.metrics.PaymentEvents.WithLabelValues("failed").Inc()
		return nil, s.storeError(err, event.OrderID)
	}

	current, err := s.getOrder(ctx, event.OrderID)
	if err != nil {
		s.metrics.PaymentEvents.WithLabelValues("failed").Inc()
		return nil, err
	}
	switch current.Status {
	case models.StatusPaid:
		s.metrics.PaymentEvents.WithLabelValues("duplicate").Inc()
		s.log.Info("payment already applied", zap.String("order_id", current.ID))
		return current, nil
	case models.StatusCancelled:
		s.metrics.PaymentEvents.WithLabelValues("rejected").Inc()
		return nil, apperror.InvalidTransition("order %s is CANCELLED and cannot be paid", current.ID)
	default:
		s.metrics.PaymentEvents.WithLabelValues("failed").Inc()
		return nil, apperror.Persistence(repositories.ErrStatusConflict, "order %s changed while applying payment", current.ID)
	}
}

func (s *OrderService) getOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, id)
	}
	return order, nil
}

func (s *OrderService) resolveNames(ctx context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return nil
	}
	ids := make([]int, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.ValidateProducts(ctx, ids)
	if err != nil {
		if apperror.Is(err, apperror.KindValidation) {
			// The ids come from a stored order, so the catalog has drifted.
			s.log.Error("stored order references unknown products", zap.String("order_id", order.ID), zap.Error(err))
			return apperror.Wrap(apperror.KindInternal, err, "order %s references products missing from the catalog", order.ID)
		}
		return err
	}
	names := make(map[int]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range order.Items {
		order.Items[i].Name = names[order.Items[i].ProductID]
	}
	return nil
}

func (s *OrderService) sessionRequest(orderID string, lines []models.PaymentLine) models.PaymentSessionRequest {
	return models.PaymentSessionRequest{OrderID: orderID, Currency: s.currency, Items: lines}
}

// storeError translates repository errors into the service taxonomy.
func (s *OrderService) storeError(err error, id string) error {
	switch {
	case errors.Is(err, repositories.ErrOrderNotFound):
		return apperror.NotFound("Order with id %s not found", id)
	case errors.Is(err, repositories.ErrStatusConflict):
		return apperror.InvalidTransition("order %s was modified concurrently", id)
	default:
		s.log.Error("order store failure", zap.String("order_id", id), zap.Error(err))
		return apperror.Persistence(err, "order store failure")
	}
}
