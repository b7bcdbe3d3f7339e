package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"paluwagan/internal/core"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures          = 5
	openTimeout          = 30 * time.Second
	maxBackoff           = 30 * time.Second
	maxReconnectAttempts = 5
	publishTimeout       = 5 * time.Second
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key equals the queue name on the direct exchange
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// reconnect drops the current connection and dials again with exponential
// backoff until it succeeds, attempts run out or ctx ends.
func (c *Client) reconnect(ctx context.Context) error {
	c.closeConn()

	var lastErr error
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}
		if lastErr = c.connect(); lastErr == nil {
			slog.InfoContext(ctx, "Reconnected to AMQP broker", "attempt", attempt+1)
			return nil
		}
		slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("reconnect after %d attempts: %w", maxReconnectAttempts, lastErr)
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil
	}
	return c.channel
}

// Healthy reports whether the circuit is closed and a channel is open.
func (c *Client) Healthy() bool {
	return atomic.LoadInt32(&c.state) == StateClosed && c.currentChannel() != nil
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isCircuitOpen reports whether publishing must be refused. An open circuit
// moves to half-open once openTimeout has passed since the last failure.
func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	failures := atomic.AddInt64(&c.failureCount, 1)
	if failures >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) publish(ctx context.Context, msgType string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, dropping %s message", msgType)
	}

	ch := c.currentChannel()
	if ch == nil {
		if err := c.reconnect(ctx); err != nil {
			c.recordFailure()
			return fmt.Errorf("publish %s: %w", msgType, err)
		}
		if ch = c.currentChannel(); ch == nil {
			c.recordFailure()
			return fmt.Errorf("publish %s: no open channel", msgType)
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(pubCtx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Type:         msgType,
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeConn()
		}
		return fmt.Errorf("publish %s: %w", msgType, err)
	}

	c.recordSuccess()
	return nil
}

// Emit publishes a reminder event. It satisfies the services notifier port.
func (c *Client) Emit(ctx context.Context, e core.ReminderEvent) error {
	body, err := NewReminderMessage(e).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}
	if err := c.publish(ctx, TypeReminder, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published reminder message",
		"collection_id", e.CollectionID,
		"user_id", e.UserID,
		"kind", string(e.Kind),
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishPaymentRecorded publishes a payment receipt for the ledger worker.
func (c *Client) PublishPaymentRecorded(ctx context.Context, r core.PaymentReceipt) error {
	body, err := NewPaymentRecordedMessage(r).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal payment receipt: %w", err)
	}
	if err := c.publish(ctx, TypePaymentRecorded, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published payment recorded message",
		"collection_id", r.CollectionID,
		"group_id", r.GroupID,
		"amount_cents", r.Amount.Cents,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Handlers receives decoded deliveries. A nil handler rejects that type.
type Handlers struct {
	Reminder        func(context.Context, *ReminderMessage) error
	PaymentRecorded func(context.Context, *PaymentRecordedMessage) error
}

// Consume processes deliveries until ctx ends or the channel closes.
// Malformed or unroutable deliveries are dropped; handler failures requeue.
func (c *Client) Consume(ctx context.Context, h Handlers) error {
	ch := c.currentChannel()
	if ch == nil {
		return fmt.Errorf("start consuming: no open channel")
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming ledger messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			dispatch(ctx, d, h)
		}
	}
}

type deliveryOutcome int

const (
	outcomeAck deliveryOutcome = iota
	outcomeDrop
	outcomeRequeue
)

func dispatch(ctx context.Context, d amqp091.Delivery, h Handlers) deliveryOutcome {
	outcome := handle(ctx, d, h)
	switch outcome {
	case outcomeAck:
		d.Ack(false)
	case outcomeDrop:
		d.Nack(false, false)
	case outcomeRequeue:
		d.Nack(false, true)
	}
	return outcome
}

func handle(ctx context.Context, d amqp091.Delivery, h Handlers) deliveryOutcome {
	var err error
	switch {
	case d.Type == TypeReminder && h.Reminder != nil:
		msg, decodeErr := ReminderMessageFromJSON(d.Body)
		if decodeErr != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal reminder message", "error", decodeErr)
			return outcomeDrop
		}
		err = h.Reminder(ctx, msg)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to handle reminder message",
				"error", err,
				"collection_id", msg.CollectionID)
		}
	case d.Type == TypePaymentRecorded && h.PaymentRecorded != nil:
		msg, decodeErr := PaymentRecordedMessageFromJSON(d.Body)
		if decodeErr != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal payment message", "error", decodeErr)
			return outcomeDrop
		}
		err = h.PaymentRecorded(ctx, msg)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to handle payment message",
				"error", err,
				"collection_id", msg.CollectionID)
		}
	default:
		slog.WarnContext(ctx, "Dropping message with unhandled type", "type", d.Type)
		return outcomeDrop
	}

	if err != nil {
		return outcomeRequeue
	}
	return outcomeAck
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
