package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

const directReplyTo = "amq.rabbitmq.reply-to"

var (
	// ErrTimeout is returned by Call when no reply arrives before the deadline.
	ErrTimeout = errors.New("rabbitmq: rpc timed out")
	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("rabbitmq: client closed")
	// ErrReject marks a handler error whose delivery must not be requeued.
	ErrReject = errors.New("rabbitmq: reject delivery")
)

// Reject wraps err so that the consumer nacks the delivery without requeue,
// routing it to the queue's dead-letter exchange.
func Reject(err error) error {
	return fmt.Errorf("%w: %v", ErrReject, err)
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL            string
	Prefetch       int
	HandlerTimeout time.Duration // per-delivery handler deadline
}

// Client holds the RabbitMQ connection, the channel used for publishing and
// direct reply-to, and the consumers started on it.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	log     *zap.Logger

	pubMu   sync.Mutex // serializes publishes on channel
	mu      sync.Mutex
	pending map[string]chan amqp.Delivery
	closed  bool

	consumers  []consumer
	wg         sync.WaitGroup // consumer loops and in-flight handlers
	dispatchWG sync.WaitGroup

	done    chan struct{} // closed once the connection is gone
	connErr error
}

// NewClient creates a new RabbitMQ client.
// It connects to RabbitMQ, opens a channel and starts listening for RPC replies.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // Close connection if channel creation fails
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Direct reply-to requires consuming before the first publish on this channel.
	replies, err := ch.Consume(directReplyTo, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to consume %s: %w", directReplyTo, err)
	}

	c := &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		log:     log,
		pending: make(map[string]chan amqp.Delivery),
		done:    make(chan struct{}),
	}
	go c.watchConnection(conn.NotifyClose(make(chan *amqp.Error, 1)))
	c.dispatchWG.Add(1)
	go c.dispatchReplies(replies)

	log.Info("RabbitMQ client connected")
	return c, nil
}

// watchConnection closes done when the connection ends. The broker reports
// an error on an unexpected close; a Close call leaves connErr nil.
func (c *Client) watchConnection(notify <-chan *amqp.Error) {
	amqpErr, ok := <-notify
	if ok && amqpErr != nil {
		c.mu.Lock()
		c.connErr = amqpErr
		c.mu.Unlock()
		c.log.Error("RabbitMQ connection lost", zap.Error(amqpErr))
	}
	close(c.done)
}

// Done is closed once the connection has ended, by Close or by the broker.
// Consumers stop with it, so the process should exit and be restarted.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Healthy returns nil while the connection is open.
func (c *Client) Healthy() error {
	select {
	case <-c.done:
	default:
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connErr != nil {
		return fmt.Errorf("rabbitmq: connection lost: %w", c.connErr)
	}
	return ErrClosed
}

func (c *Client) dispatchReplies(replies <-chan amqp.Delivery) {
	defer c.dispatchWG.Done()
	for d := range replies {
		c.mu.Lock()
		waiter, ok := c.pending[d.CorrelationId]
		delete(c.pending, d.CorrelationId)
		c.mu.Unlock()
		if !ok {
			c.log.Warn("dropping late rpc reply", zap.String("correlation_id", d.CorrelationId))
			continue
		}
		waiter <- d
	}
}

// Call publishes req to queue with the given pattern as message type and waits
// for the reply, decoding its data into resp. A reply carrying an error is
// returned as *RemoteError. The call never outlives ctx.
func (c *Client) Call(ctx context.Context, queue, pattern string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", pattern, err)
	}

	correlationID := uuid.New().String()
	waiter := make(chan amqp.Delivery, 1)

	c.mu.Lock()
	c.pending[correlationID] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	msg := amqp.Publishing{
		ContentType:   "application/json",
		Type:          pattern,
		CorrelationId: correlationID,
		ReplyTo:       directReplyTo,
		Timestamp:     time.Now(),
		Body:          body,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if ttl := time.Until(deadline).Milliseconds(); ttl > 0 {
			msg.Expiration = fmt.Sprintf("%d", ttl)
		}
	}
	if err := c.publish("", queue, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", pattern, err)
	}

	select {
	case d := <-waiter:
		return decodeReply(d.Body, resp)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", pattern, ErrTimeout)
		}
		return ctx.Err()
	}
}

func (c *Client) publish(exchange, key string, msg amqp.Publishing) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	return c.channel.Publish(exchange, key, false, false, msg)
}

// DeclareQueue declares a durable queue whose rejected messages are routed to
// a dead-letter queue named "<name>.dlq" through the "<name>.dlx" exchange.
func (c *Client) DeclareQueue(name string) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	dlx := name + ".dlx"
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare %s: %w", dlx, err)
	}
	dlq, err := ch.QueueDeclare(name+".dlq", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare %s.dlq: %w", name, err)
	}
	if err := ch.QueueBind(dlq.Name, "", dlx, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", dlq.Name, err)
	}
	_, err = ch.QueueDeclare(
		name,
		true,  // durable (persists messages across broker restarts)
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": dlx},
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", name, err)
	}
	return nil
}

// HandlerFunc processes one delivery. Returning nil acks it; returning an
// error wrapping ErrReject nacks it without requeue; any other error nacks it
// with requeue.
type HandlerFunc func(ctx context.Context, d amqp.Delivery) error

// Consume starts a consumer on queue with manual acknowledgement. It returns
// once the consumer is registered; each delivery is handled in its own
// goroutine until the client is closed.
func (c *Client) Consume(queue string, handler HandlerFunc) error {
	msgs, err := c.openConsumer(queue)
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// Prefetch bounds the number of unacked deliveries, and so the
		// number of handlers running at once.
		for d := range msgs {
			c.wg.Add(1)
			go func(d amqp.Delivery) {
				defer c.wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandlerTimeout)
				err := handler(ctx, d)
				cancel()
				c.settle(queue, d, err)
			}(d)
		}
		c.mu.Lock()
		closing := c.closed
		c.mu.Unlock()
		if closing {
			c.log.Info("consumer stopped", zap.String("queue", queue))
		} else {
			c.log.Error("consumer stopped unexpectedly", zap.String("queue", queue))
		}
	}()
	return nil
}

func (c *Client) settle(queue string, d amqp.Delivery, err error) {
	fields := []zap.Field{zap.String("queue", queue), zap.Uint64("delivery_tag", d.DeliveryTag)}
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("failed to ack delivery", append(fields, zap.Error(ackErr))...)
		}
		return
	}
	requeue := !errors.Is(err, ErrReject)
	c.log.Warn("delivery not acknowledged", append(fields, zap.Bool("requeue", requeue), zap.Error(err))...)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		c.log.Error("failed to nack delivery", append(fields, zap.Error(nackErr))...)
	}
}

// RPCHandlerFunc answers one request. The returned value is sent as reply data,
// an error as a reply error.
type RPCHandlerFunc func(ctx context.Context, pattern string, body []byte) (any, error)

// ErrorEncoder turns a handler error into its wire form.
type ErrorEncoder func(err error) *RemoteError

// Serve consumes requests from queue and replies to each on its ReplyTo
// address. Requests are acked once answered, whatever the outcome.
func (c *Client) Serve(queue string, handler RPCHandlerFunc, encode ErrorEncoder) error {
	return c.Consume(queue, func(ctx context.Context, d amqp.Delivery) error {
		data, err := handler(ctx, d.Type, d.Body)
		if d.ReplyTo == "" {
			return nil
		}
		reply := Reply{}
		if err != nil {
			reply.Error = encode(err)
		} else if reply.Data, err = json.Marshal(data); err != nil {
			reply.Error = &RemoteError{Kind: "INTERNAL", StatusCode: 500, Message: "failed to encode reply"}
		}
		body, err := json.Marshal(reply)
		if err != nil {
			return Reject(err)
		}
		if err := c.publish("", d.ReplyTo, amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: d.CorrelationId,
			Timestamp:     time.Now(),
			Body:          body,
		}); err != nil {
			return Reject(fmt.Errorf("failed to publish reply: %w", err))
		}
		return nil
	})
}

type consumer struct {
	ch  *amqp.Channel
	tag string
}

func (c *Client) openConsumer(queue string) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	// fair dispatch
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}
	tag := "c_" + queue
	msgs, err := ch.Consume(
		queue,
		tag,   // consumer tag
		false, // auto-ack: set to false to manually acknowledge messages
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}
	c.consumers = append(c.consumers, consumer{ch: ch, tag: tag})
	c.log.Info("waiting for messages", zap.String("queue", queue))
	return msgs, nil
}

// Close stops the consumers and waits for in-flight deliveries, which may
// still publish and receive replies, then closes the channels and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	consumers := c.consumers
	c.mu.Unlock()

	var errs []error
	for _, cons := range consumers {
		if err := cons.ch.Cancel(cons.tag, false); err != nil {
			errs = append(errs, fmt.Errorf("failed to cancel consumer %s: %w", cons.tag, err))
		}
	}
	c.wg.Wait()
	if c.channel != nil {
		// Closing the publish channel ends the reply dispatcher.
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	c.dispatchWG.Wait()
	for _, cons := range consumers {
		if err := cons.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
