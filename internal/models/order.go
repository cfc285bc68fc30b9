package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses lists every valid status.
var OrderStatuses = []OrderStatus{StatusPending, StatusPaid, StatusCancelled}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// OrderItem is a snapshot of one product line at order-creation time.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   string          `json:"-" gorm:"type:varchar(36);index;not null"`
	ProductID int             `json:"productId" gorm:"not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric;not null"` // Price at the time of order
	Name      string          `json:"name,omitempty" gorm:"-"`                  // Resolved from the catalog on read
}

// OrderReceipt records a settled payment. At most one exists per order.
type OrderReceipt struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID    string    `json:"orderId" gorm:"type:varchar(36);uniqueIndex;not null"`
	ReceiptURL string    `json:"receiptUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Order is the purchase aggregate.
type Order struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TotalAmount      decimal.Decimal `json:"totalAmount" gorm:"type:numeric;not null"`
	TotalItems       int             `json:"totalItems" gorm:"not null"`
	Status           OrderStatus     `json:"status" gorm:"type:varchar(16);index;not null"`
	Paid             bool            `json:"paid" gorm:"not null;default:false"`
	PaidAt           *time.Time      `json:"paidAt"`
	PaymentReference string          `json:"paymentReference,omitempty" gorm:"type:varchar(255)"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	Items            []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Receipt          *OrderReceipt   `json:"receipt,omitempty" gorm:"foreignKey:OrderID"`
}

// Pagination selects one page of orders, optionally filtered by status.
type Pagination struct {
	Page   int
	Limit  int
	Status OrderStatus
}

// Offset is the number of rows skipped before the page starts.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageMeta describes a paginated result.
type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"lastPage"`
}

// NewPageMeta computes the page metadata for total matching rows.
func NewPageMeta(total int64, p Pagination) PageMeta {
	last := 0
	if p.Limit > 0 {
		last = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PageMeta{Total: total, Page: p.Page, LastPage: last}
}

// OrderPage is a page of orders without their items.
type OrderPage struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}
