package repositories

import (
	"context"
	"errors"
	"time"

	"orders/internal/models"
)

var (
	// ErrOrderNotFound is returned when no order has the requested id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusConflict is returned when a conditional update finds the order
	// in a status other than the expected one.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Payment carries the settlement details applied by MarkPaid.
type Payment struct {
	Reference  string
	ReceiptURL string
	PaidAt     time.Time
}

// OrderRepository defines the interface for order data access.
//
// Status writes are compare-and-set: they apply only while the stored status
// equals the expected one and return ErrStatusConflict otherwise.
type OrderRepository interface {
	// Create persists the order and all of its items atomically, assigning the id.
	Create(ctx context.Context, order *models.Order) error
	// GetByID returns the order with its items and receipt.
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// List returns a page of orders ordered by creation time, without items.
	List(ctx context.Context, p models.Pagination) ([]models.Order, int64, error)
	// UpdateStatus moves the order from expected to next.
	UpdateStatus(ctx context.Context, id string, expected, next models.OrderStatus) (*models.Order, error)
	// MarkPaid moves a PENDING order to PAID and stores its receipt in one unit.
	MarkPaid(ctx context.Context, id string, payment Payment) (*models.Order, error)
}
