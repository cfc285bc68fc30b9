package clients

import (
	"context"
	"errors"
	"sort"
	"time"

	"orders/internal/apperror"
	"orders/internal/metrics"
	"orders/internal/models"
	"orders/pkg/rabbitmq"
)

// PatternValidateProducts is the catalog operation resolving product ids.
const PatternValidateProducts = "product_validate_products"

// Caller performs a request/response exchange over the message transport.
// *rabbitmq.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, queue, pattern string, req, resp any) error
}

// ProductValidator resolves product ids against the catalog. Either every
// requested id is resolved or an error is returned.
type ProductValidator interface {
	ValidateProducts(ctx context.Context, ids []int) ([]models.Product, error)
}

// CatalogClient calls the product catalog service.
type CatalogClient struct {
	caller  Caller
	queue   string
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewCatalogClient creates a catalog client sending to queue.
func NewCatalogClient(caller Caller, queue string, timeout time.Duration, m *metrics.Metrics) *CatalogClient {
	return &CatalogClient{caller: caller, queue: queue, timeout: timeout, metrics: m}
}

type validateProductsRequest struct {
	IDs []int `json:"ids"`
}

// ValidateProducts asks the catalog for the current name and price of ids.
func (c *CatalogClient) ValidateProducts(ctx context.Context, ids []int) ([]models.Product, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return nil, apperror.Validation("at least one product id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var products []models.Product
	start := time.Now()
	err := c.caller.Call(ctx, c.queue, PatternValidateProducts, validateProductsRequest{IDs: unique}, &products)
	c.metrics.ObserveRPC(PatternValidateProducts, start, err)
	if err != nil {
		return nil, classifyRPCError(err, "catalog")
	}
	return ensureResolved(unique, products)
}

// ensureResolved checks the catalog answered for every id and returns the
// products in request order.
func ensureResolved(ids []int, products []models.Product) ([]models.Product, error) {
	byID := make(map[int]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	resolved := make([]models.Product, 0, len(ids))
	var missing []int
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		resolved = append(resolved, p)
	}
	if len(missing) > 0 {
		return nil, apperror.Validation("products not found: %v", missing)
	}
	return resolved, nil
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// classifyRPCError maps a transport-level error to the service taxonomy. A
// remote 4xx answer is the caller's fault; everything else is a transport failure.
func classifyRPCError(err error, service string) error {
	var remote *rabbitmq.RemoteError
	if errors.As(err, &remote) && remote.ClientFault() {
		return apperror.Validation("%s rejected request: %s", service, remote.Message)
	}
	if errors.Is(err, rabbitmq.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.Transport(err, "%s did not answer in time", service)
	}
	return apperror.Transport(err, "%s unavailable", service)
}

// Compile-time checks.
var (
	_ ProductValidator = (*CatalogClient)(nil)
	_ Caller           = (*rabbitmq.Client)(nil)
)
