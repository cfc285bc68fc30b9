package services

import (
	"fmt"

	"orders/internal/models"

	"github.com/shopspring/decimal"
)

// RequestedItem is one line of an incoming order request. Any price the
// client sends is never read.
type RequestedItem struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gt=0"`
}

// BuiltOrder is an order ready to persist together with its line items,
// which carry the catalog name for the payment session.
type BuiltOrder struct {
	Order *models.Order
	Lines []models.PaymentLine
}

// BuildOrder turns validated items into priced line items and totals using
// catalog prices only. Every requested product must appear in products.
func BuildOrder(items []RequestedItem, products []models.Product) (BuiltOrder, error) {
	byID := make(map[int]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	order := &models.Order{
		Status:      models.StatusPending,
		TotalAmount: decimal.Zero,
		Items:       make([]models.OrderItem, 0, len(items)),
	}
	lines := make([]models.PaymentLine, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return BuiltOrder{}, fmt.Errorf("product %d was not resolved", item.ProductID)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     product.Price,
			Name:      product.Name,
		})
		lines = append(lines, models.PaymentLine{
			Name:     product.Name,
			Price:    product.Price,
			Quantity: item.Quantity,
		})
		order.TotalAmount = order.TotalAmount.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		order.TotalItems += item.Quantity
	}
	return BuiltOrder{Order: order, Lines: lines}, nil
}
