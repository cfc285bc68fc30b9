package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"orders/internal/models"

	"github.com/google/uuid"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
// Orders are stored by value and copied on every read, so callers never share
// state with the repository.
type MemoryOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
	now    func() time.Time
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.Order),
		now:    time.Now,
	}
}

// Create adds a new order.
func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order with ID %s already exists", order.ID)
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	now := r.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].ID = uint(i + 1)
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

// GetByID returns an order by its ID.
func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	out := cloneOrder(order)
	return &out, nil
}

// List returns one page of orders ordered by creation time, without items.
func (r *MemoryOrderRepository) List(_ context.Context, p models.Pagination) ([]models.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matching := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if p.Status != "" && order.Status != p.Status {
			continue
		}
		order.Items = nil
		order.Receipt = nil
		matching = append(matching, order)
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID < matching[j].ID
		}
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})

	total := int64(len(matching))
	start := p.Offset()
	if start >= len(matching) {
		return []models.Order{}, total, nil
	}
	end := start + p.Limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[start:end], total, nil
}

// UpdateStatus moves the order from expected to next.
func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, id string, expected, next models.OrderStatus) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	if order.Status != expected {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrStatusConflict)
	}
	now := r.now()
	order.Status = next
	order.UpdatedAt = now
	if next == models.StatusPaid {
		order.Paid = true
		order.PaidAt = &now
	}
	r.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

// MarkPaid moves a PENDING order to PAID and attaches its receipt.
func (r *MemoryOrderRepository) MarkPaid(_ context.Context, id string, payment Payment) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	if order.Status != models.StatusPending || order.Receipt != nil {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrStatusConflict)
	}
	paidAt := payment.PaidAt
	order.Status = models.StatusPaid
	order.Paid = true
	order.PaidAt = &paidAt
	order.PaymentReference = payment.Reference
	order.UpdatedAt = paidAt
	order.Receipt = &models.OrderReceipt{
		ID:         uuid.New().String(),
		OrderID:    id,
		ReceiptURL: payment.ReceiptURL,
		CreatedAt:  paidAt,
	}
	r.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

func cloneOrder(o models.Order) models.Order {
	if o.Items != nil {
		o.Items = append([]models.OrderItem(nil), o.Items...)
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.Receipt != nil {
		rc := *o.Receipt
		o.Receipt = &rc
	}
	return o
}
