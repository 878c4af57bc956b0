// Package mailer sends reservation mail over a plain SMTP relay.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Mailer holds relay settings.  A Mailer with an empty host is disabled:
// every send becomes a logged no-op, which keeps the queue consumer
// runnable in environments without a relay.
type Mailer struct {
	host string
	port string
	auth smtp.Auth
	from string
	ops  string
	log  zerolog.Logger
}

// New returns a Mailer for the given relay.  user and pass may be empty
// for relays that accept unauthenticated mail.
func New(host, port, user, pass, from, opsEmail string, log zerolog.Logger) *Mailer {
	m := &Mailer{host: host, port: port, from: from, ops: opsEmail, log: log}
	if user != "" {
		m.auth = smtp.PlainAuth("", user, pass, host)
	}
	return m
}

// SendBookingConfirmation mails the guest their confirmed reservation.
func (m *Mailer) SendBookingConfirmation(to, guestName, eventName, startsAt string, partySize uint32, amountCents uint32) error {
	if to == "" {
		return nil
	}
	greeting := "Hello"
	if guestName != "" {
		greeting = "Hello " + guestName
	}
	subject := fmt.Sprintf("Your reservation for %s is confirmed", eventName)
	body := fmt.Sprintf(
		"%s,\n\nYour reservation for %s on %s is confirmed.\nParty size: %d\nAmount paid: $%d.%02d\n\nWe look forward to seeing you.",
		greeting, eventName, startsAt, partySize, amountCents/100, amountCents%100)
	return m.send(to, subject, body)
}

// SendReconciliationAlert mails the operations inbox about a paid event
// that needs a human.
func (m *Mailer) SendReconciliationAlert(gatewayEventID, reason string) error {
	if m.ops == "" {
		return nil
	}
	subject := fmt.Sprintf("Payment %s needs manual reconciliation", gatewayEventID)
	body := fmt.Sprintf(
		"A paid gateway event could not be seated automatically.\n\nEvent: %s\nReason: %s\n\nReview it in the admin reconciliation queue.",
		gatewayEventID, reason)
	return m.send(m.ops, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	if m.host == "" {
		m.log.Debug().Str("to", to).Str("subject", subject).Msg("mailer disabled, mail dropped")
		return nil
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("to", to).Msg("mail send failed")
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.log.Info().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}
