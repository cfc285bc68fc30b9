package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orders/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Migrate creates or updates the order tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.OrderReceipt{}); err != nil {
		return fmt.Errorf("failed to migrate order tables: %w", err)
	}
	return nil
}

// Create inserts the order row and its item rows in a single transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Receipt").Create(order).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order with its items and receipt.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Receipt").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// List retrieves one page of orders and the total number of matching orders.
func (r *GORMOrderRepository) List(ctx context.Context, p models.Pagination) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if p.Status != "" {
		query = query.Where("status = ?", p.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	orders := make([]models.Order, 0, p.Limit)
	err := query.Order("created_at ASC").Order("id ASC").
		Offset(p.Offset()).
		Limit(p.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus applies next only if the stored status still equals expected.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, expected, next models.OrderStatus) (*models.Order, error) {
	now := time.Now()
	values := map[string]any{
		"status":     next,
		"updated_at": now,
	}
	if next == models.StatusPaid {
		values["paid"] = true
		values["paid_at"] = now
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update status of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, conflictOrMissing(r.db.WithContext(ctx), id)
	}
	return r.GetByID(ctx, id)
}

// MarkPaid moves a PENDING order to PAID and inserts its receipt. The unique
// index on order_receipts.order_id backs the status precondition, so a
// redelivered confirmation can never produce a second receipt.
func (r *GORMOrderRepository) MarkPaid(ctx context.Context, id string, payment Payment) (*models.Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, models.StatusPending).
			Updates(map[string]any{
				"status":            models.StatusPaid,
				"paid":              true,
				"paid_at":           payment.PaidAt,
				"payment_reference": payment.Reference,
				"updated_at":        payment.PaidAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark order %s paid: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictOrMissing(tx, id)
		}
		receipt := models.OrderReceipt{
			ID:         uuid.New().String(),
			OrderID:    id,
			ReceiptURL: payment.ReceiptURL,
			CreatedAt:  payment.PaidAt,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return fmt.Errorf("failed to create receipt for order %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func conflictOrMissing(db *gorm.DB, id string) error {
	var count int64
	if err := db.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check order %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	return fmt.Errorf("order with ID %s: %w", id, ErrStatusConflict)
}
