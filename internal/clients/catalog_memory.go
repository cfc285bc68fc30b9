package clients

import (
	"context"
	"sync"

	"orders/internal/models"
)

// MemoryCatalog is an in-process catalog used for local runs and tests.
type MemoryCatalog struct {
	products map[int]models.Product
	mu       sync.RWMutex
}

// NewMemoryCatalog creates a catalog holding products.
func NewMemoryCatalog(products ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[int]models.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// ValidateProducts resolves ids from the in-memory product set.
func (c *MemoryCatalog) ValidateProducts(ctx context.Context, ids []int) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyRPCError(err, "catalog")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	found := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			found = append(found, p)
		}
	}
	return ensureResolved(uniqueIDs(ids), found)
}
