package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/model"
)

// Publisher writes booking events to RabbitMQ on the default exchange,
// one durable queue per event kind.  The connection is kept open across
// publishes and redialled lazily after a broker drop.  Publishing is
// fire-and-forget from the caller's point of view; the reconciler logs
// failures and moves on.
type Publisher struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher connects to the broker and declares the queues.  An error
// here means the broker is unreachable at startup; callers may choose to
// run without a publisher.
func NewPublisher(url string, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{url: url, log: log}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	for _, name := range []string{BookingConfirmedQueue, ReconciliationAlertQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	p.conn, p.ch = conn, ch
	p.log.Info().Str("url", p.url).Msg("broker publisher connected")
	return nil
}

func (p *Publisher) publish(ctx context.Context, queueName string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", queueName, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	err = p.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	p.log.Debug().Str("queue", queueName).Msg("event published")
	return nil
}

// BookingConfirmed publishes the confirmation event for a booking.
func (p *Publisher) BookingConfirmed(ctx context.Context, b *model.Booking, e *model.Event) error {
	return p.publish(ctx, BookingConfirmedQueue, BookingConfirmedEvent{
		BookingID:   b.ID,
		EventID:     e.ID,
		EventName:   e.Name,
		StartsAt:    e.StartsAt.Format(time.RFC3339),
		TableID:     b.TableID,
		GuestName:   b.GuestName,
		GuestEmail:  b.GuestEmail,
		PartySize:   b.PartySize,
		AmountCents: b.AmountCents,
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// ReconciliationAlert publishes an escalation for the operations queue.
func (p *Publisher) ReconciliationAlert(ctx context.Context, gatewayEventID, reason string) error {
	return p.publish(ctx, ReconciliationAlertQueue, ReconciliationAlertEvent{
		GatewayEventID: gatewayEventID,
		Reason:         reason,
		RaisedAt:       time.Now().UTC().Format(time.RFC3339),
	})
}

// Close shuts the channel and connection down.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
