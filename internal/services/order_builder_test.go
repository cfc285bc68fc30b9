package services_test

import (
	"math/rand"
	"testing"

	"orders/internal/models"
	"orders/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOrder_Totals(t *testing.T) {
	products := []models.Product{
		{ID: 1, Name: "Laptop", Price: decimal.NewFromInt(10)},
		{ID: 2, Name: "Mouse", Price: decimal.NewFromInt(5)},
	}
	items := []services.RequestedItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}

	built, err := services.BuildOrder(items, products)
	require.NoError(t, err)

	order := built.Order
	assert.True(t, decimal.NewFromInt(25).Equal(order.TotalAmount), "total %s", order.TotalAmount)
	assert.Equal(t, 3, order.TotalItems)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.False(t, order.Paid)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Laptop", order.Items[0].Name)
	assert.True(t, decimal.NewFromInt(10).Equal(order.Items[0].Price))

	require.Len(t, built.Lines, 2)
	assert.Equal(t, models.PaymentLine{Name: "Mouse", Price: decimal.NewFromInt(5), Quantity: 1}, built.Lines[1])
}

func TestBuildOrder_DecimalPrecision(t *testing.T) {
	products := []models.Product{{ID: 1, Name: "Pen", Price: decimal.RequireFromString("0.10")}}
	items := []services.RequestedItem{{ProductID: 1, Quantity: 3}}

	built, err := services.BuildOrder(items, products)
	require.NoError(t, err)
	assert.Equal(t, "0.3", built.Order.TotalAmount.String())
}

func TestBuildOrder_RepeatedProduct(t *testing.T) {
	products := []models.Product{{ID: 4, Name: "Cable", Price: decimal.NewFromInt(3)}}
	items := []services.RequestedItem{{ProductID: 4, Quantity: 1}, {ProductID: 4, Quantity: 2}}

	built, err := services.BuildOrder(items, products)
	require.NoError(t, err)
	assert.Len(t, built.Order.Items, 2)
	assert.Equal(t, 3, built.Order.TotalItems)
	assert.True(t, decimal.NewFromInt(9).Equal(built.Order.TotalAmount))
}

func TestBuildOrder_UnresolvedProduct(t *testing.T) {
	_, err := services.BuildOrder([]services.RequestedItem{{ProductID: 9, Quantity: 1}}, nil)
	assert.Error(t, err)
}

// Totals always equal the sums over the line items, whatever the input.
func TestBuildOrder_TotalsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 500; run++ {
		catalogSize := 1 + rng.Intn(8)
		products := make([]models.Product, catalogSize)
		for i := range products {
			products[i] = models.Product{
				ID:    i + 1,
				Name:  "p",
				Price: decimal.New(rng.Int63n(100000), -2),
			}
		}
		items := make([]services.RequestedItem, 1+rng.Intn(10))
		for i := range items {
			items[i] = services.RequestedItem{ProductID: 1 + rng.Intn(catalogSize), Quantity: 1 + rng.Intn(20)}
		}

		built, err := services.BuildOrder(items, products)
		require.NoError(t, err)

		wantAmount := decimal.Zero
		wantItems := 0
		for _, item := range items {
			price := products[item.ProductID-1].Price
			wantAmount = wantAmount.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			wantItems += item.Quantity
		}
		require.True(t, wantAmount.Equal(built.Order.TotalAmount), "run %d: want %s got %s", run, wantAmount, built.Order.TotalAmount)
		require.Equal(t, wantItems, built.Order.TotalItems)

		lineSum := decimal.Zero
		for _, line := range built.Order.Items {
			lineSum = lineSum.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		require.True(t, lineSum.Equal(built.Order.TotalAmount))
	}
}
