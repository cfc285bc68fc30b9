package models

import "github.com/shopspring/decimal"

// Product is the catalog's authoritative view of a product.
type Product struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// PaymentLine is one line of a checkout session request.
type PaymentLine struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// PaymentSessionRequest is sent to the payment service for a new order.
type PaymentSessionRequest struct {
	OrderID  string        `json:"orderId"`
	Currency string        `json:"currency"`
	Items    []PaymentLine `json:"items"`
}

// PaymentSucceeded is the asynchronous event emitted once a payment settles.
type PaymentSucceeded struct {
	OrderID          string `json:"orderId"`
	PaymentReference string `json:"paymentReference"`
	ReceiptURL       string `json:"receiptUrl"`
}
