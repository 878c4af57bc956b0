package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/mailer"
)

// Consumer drains the booking queues and turns events into mail: guest
// confirmations for booking.confirmed, operations alerts for
// reconciliation.alert.  It runs a reconnect loop with capped backoff and
// keeps going until its context is cancelled.  Messages that fail to
// process are rejected without requeue so a poison message cannot wedge
// the queue.
type Consumer struct {
	url    string
	mailer *mailer.Mailer
	log    zerolog.Logger
}

// NewConsumer returns a Consumer for the given broker URL.
func NewConsumer(url string, m *mailer.Mailer, log zerolog.Logger) *Consumer {
	return &Consumer{url: url, mailer: m, log: log}
}

// Run connects and consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("broker dial failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn().Err(err).Msg("consume loop ended, reconnecting")
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("set qos failed")
	}

	for _, name := range []string{BookingConfirmedQueue, ReconciliationAlertQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	confirmations, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", BookingConfirmedQueue, err)
	}
	alerts, err := ch.Consume(ReconciliationAlertQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ReconciliationAlertQueue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-confirmations:
			if !ok {
				return errors.New("confirmation deliveries channel closed")
			}
			c.settle(d, c.handleConfirmation(d.Body))
		case d, ok := <-alerts:
			if !ok {
				return errors.New("alert deliveries channel closed")
			}
			c.settle(d, c.handleAlert(d.Body))
		}
	}
}

func (c *Consumer) settle(d amqp.Delivery, err error) {
	if err != nil {
		c.log.Error().Err(err).Str("queue", d.RoutingKey).Msg("message handling failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) handleConfirmation(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal confirmation: %w", err)
	}
	c.log.Info().
		Uint64("booking_id", ev.BookingID).
		Uint64("event_id", ev.EventID).
		Str("guest_email", ev.GuestEmail).
		Msg("booking confirmation received")
	return c.mailer.SendBookingConfirmation(
		ev.GuestEmail, ev.GuestName, ev.EventName, ev.StartsAt, ev.PartySize, ev.AmountCents)
}

func (c *Consumer) handleAlert(body []byte) error {
	var ev ReconciliationAlertEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal alert: %w", err)
	}
	c.log.Error().
		Str("gateway_event_id", ev.GatewayEventID).
		Str("reason", ev.Reason).
		Msg("reconciliation alert received")
	return c.mailer.SendReconciliationAlert(ev.GatewayEventID, ev.Reason)
}
