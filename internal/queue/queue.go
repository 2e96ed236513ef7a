// Package queue publishes learner progress events to RabbitMQ and consumes
// them back for tailing.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrNotConnected is returned when publishing without an open channel.
	ErrNotConnected = errors.New("rabbitmq channel not open")
	// ErrClosed is returned by operations on a closed Connection.
	ErrClosed = errors.New("rabbitmq connection closed")
)

// EventQueueName is the durable queue learner progress events are published to.
const EventQueueName = "workshop.events"

const (
	// eventTTL bounds how long an unconsumed event stays queued.
	eventTTL = 24 * time.Hour

	maxRedials = 10
)

// Connection is a RabbitMQ connection that redials with backoff when the
// broker drops it.
type Connection struct {
	url string

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	ctx        context.Context
	cancel     context.CancelFunc
	redial     retry.Retry[struct{}]
	reconnects atomic.Int32
}

// NewConnection dials url and declares the event queue.
func NewConnection(url string) (*Connection, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		url:    url,
		ctx:    ctx,
		cancel: cancel,
		redial: retry.New[struct{}](retry.Config{
			MaxAttempts:   maxRedials,
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   func(err error) bool { return !errors.Is(err, ErrClosed) },
		}),
	}

	if err := c.dial(); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// dial opens a connection and channel and swaps them in.
func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ at %s: %w", sanitizeURL(c.url), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventQueue(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch.Close()
		conn.Close()
		return ErrClosed
	}
	c.conn, c.channel = conn, ch
	c.mu.Unlock()

	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	slog.Info("connected to RabbitMQ", "url", sanitizeURL(c.url))
	return nil
}

func declareEventQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		EventQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl": int32(eventTTL / time.Millisecond),
		},
	)
	if err != nil {
		return fmt.Errorf("declare %s: %w", EventQueueName, err)
	}
	return nil
}

// watch redials once the broker closes the connection. The notify channel
// closes without a value on a deliberate Close.
func (c *Connection) watch(notify <-chan *amqp.Error) {
	amqpErr, ok := <-notify
	if !ok || amqpErr == nil {
		return
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	slog.Warn("RabbitMQ connection lost, reconnecting", "error", amqpErr)

	_, err := c.redial.Do(c.ctx, func(ctx context.Context) (struct{}, error) {
		attempt := c.reconnects.Add(1)
		if err := c.dial(); err != nil {
			slog.Error("reconnection failed", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	switch {
	case err == nil:
		slog.Info("reconnected to RabbitMQ", "reconnects", c.reconnects.Load())
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
	default:
		slog.Error("giving up on RabbitMQ", "attempts", maxRedials, "error", err)
	}
}

// Channel returns the current channel, nil when disconnected.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close stops any pending reconnect and closes the connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the underlying connection is open.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes data as a persistent JSON message on queue.
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.RLock()
	ch, closed := c.channel, c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	return ch.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// sanitizeURL redacts the password of an AMQP URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if len(raw) > 20 {
			return raw[:20] + "..."
		}
		return raw
	}
	return u.Redacted()
}
