package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "accounts.events"

	RoutingKeyWelcome      = "accounts.email.welcome"
	RoutingKeyVerification = "accounts.email.verification"

	publishTimeout = 2 * time.Second
)

// EmailEvent is the message body consumed by the mail worker.
type EmailEvent struct {
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Link       string    `json:"link,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type channel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

type connector func() (channel, io.Closer, error)

// RabbitNotifier publishes email events to a topic exchange with
// publisher confirms. It reconnects lazily after a failed publish.
type RabbitNotifier struct {
	exchange string
	connect  connector
	now      func() time.Time

	mu   sync.Mutex
	ch   channel
	conn io.Closer
}

func NewRabbitNotifier(url, exchange string) (*RabbitNotifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	n := newRabbitNotifier(exchange, dialRabbit(url, exchange))

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ensureConnected(); err != nil {
		return nil, err
	}
	return n, nil
}

func newRabbitNotifier(exchange string, c connector) *RabbitNotifier {
	return &RabbitNotifier{exchange: exchange, connect: c, now: time.Now}
}

func (n *RabbitNotifier) SendWelcome(ctx context.Context, email, fullName string) error {
	return n.publish(ctx, RoutingKeyWelcome, EmailEvent{
		Type:     "welcome",
		Email:    email,
		FullName: fullName,
	})
}

func (n *RabbitNotifier) SendVerification(ctx context.Context, email, fullName, link string) error {
	return n.publish(ctx, RoutingKeyVerification, EmailEvent{
		Type:     "verification",
		Email:    email,
		FullName: fullName,
		Link:     link,
	})
}

func (n *RabbitNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset()
	return nil
}

func (n *RabbitNotifier) publish(ctx context.Context, key string, evt EmailEvent) error {
	evt.OccurredAt = n.now().UTC()
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal email event: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ensureConnected(); err != nil {
		return err
	}

	dc, err := n.ch.PublishWithDeferredConfirmWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	})
	if err != nil {
		n.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	// nil unless the channel is in confirm mode
	if dc == nil {
		return nil
	}

	ack, err := dc.WaitContext(ctx)
	if err != nil {
		// the broker may never confirm on this channel
		n.reset()
		return fmt.Errorf("rabbitmq confirm: key=%s: %w", key, err)
	}
	if !ack {
		return fmt.Errorf("rabbitmq nack: key=%s", key)
	}
	return nil
}

func (n *RabbitNotifier) ensureConnected() error {
	if n.ch != nil && !n.ch.IsClosed() {
		return nil
	}
	n.reset()

	ch, conn, err := n.connect()
	if err != nil {
		return err
	}
	n.ch, n.conn = ch, conn
	return nil
}

func (n *RabbitNotifier) reset() {
	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}

func dialRabbit(url, exchange string) connector {
	return func() (channel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
		}

		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("exchange declare: %w", err)
		}

		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("confirm mode: %w", err)
		}

		return ch, conn, nil
	}
}
