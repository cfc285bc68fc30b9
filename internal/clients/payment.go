package clients

import (
	"context"
	"encoding/json"
	"time"

	"orders/internal/metrics"
	"orders/internal/models"
)

// PatternCreatePaymentSession is the payment service operation opening a checkout session.
const PatternCreatePaymentSession = "payment.create.session"

// PaymentSession is the payment service's session descriptor, passed through unmodified.
type PaymentSession = json.RawMessage

// PaymentSessionCreator requests checkout sessions from the payment service.
type PaymentSessionCreator interface {
	CreateSession(ctx context.Context, req models.PaymentSessionRequest) (PaymentSession, error)
}

// PaymentClient calls the payment service.
type PaymentClient struct {
	caller  Caller
	queue   string
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewPaymentClient creates a payment client sending to queue.
func NewPaymentClient(caller Caller, queue string, timeout time.Duration, m *metrics.Metrics) *PaymentClient {
	return &PaymentClient{caller: caller, queue: queue, timeout: timeout, metrics: m}
}

// CreateSession requests a checkout session for an order.
func (c *PaymentClient) CreateSession(ctx context.Context, req models.PaymentSessionRequest) (PaymentSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var session json.RawMessage
	start := time.Now()
	err := c.caller.Call(ctx, c.queue, PatternCreatePaymentSession, req, &session)
	c.metrics.ObserveRPC(PatternCreatePaymentSession, start, err)
	if err != nil {
		return nil, classifyRPCError(err, "payment service")
	}
	return session, nil
}

var _ PaymentSessionCreator = (*PaymentClient)(nil)
