package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/marceau-events/table-reservation/internal/model"
)

// Event kinds emitted by the gateway.  Anything else is recorded and
// ignored.
const (
	KindPaymentSucceeded = "payment.succeeded"
	KindChargeDisputed   = "charge.disputed"
)

// Envelope is one webhook delivery, decoded after signature verification.
// ID is the gateway's unique event id and the idempotency anchor.
type Envelope struct {
	ID      string    `json:"id"`
	Kind    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData carries the payment facts plus the checkout metadata attached
// when the session was created.  The gateway transports metadata as string
// pairs and amounts as decimal strings.
type EventData struct {
	PaymentRef string            `json:"payment_ref"`
	Amount     string            `json:"amount"`
	Currency   string            `json:"currency"`
	Metadata   map[string]string `json:"metadata"`
}

// Parse decodes a webhook body.  Call VerifySignature first; Parse does
// not authenticate.
func Parse(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("webhook event missing id")
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("webhook event %s missing type", env.ID)
	}
	return &env, nil
}

// AmountCents converts the decimal amount string to whole cents.  An empty
// amount is zero; fractional cents and negative amounts are rejected.
func (d EventData) AmountCents() (uint32, error) {
	if d.Amount == "" {
		return 0, nil
	}
	dec, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", d.Amount, err)
	}
	cents := dec.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() || cents.IsNegative() {
		return 0, fmt.Errorf("amount %q is not a whole non-negative cent value", d.Amount)
	}
	return uint32(cents.IntPart()), nil
}

// CheckoutMetadata is the reservation context round-tripped through the
// gateway: enough to recreate the booking when the payment lands, without
// trusting any server-side session state to survive the checkout.
type CheckoutMetadata struct {
	EventID     uint64
	TableID     uint64 // 0 for ticket-only events
	SeatNumbers []uint32
	PartySize   uint32
	GuestName   string
	GuestEmail  string
	UserID      uint64 // 0 for guest checkout
	LockToken   string // originating hold credential, empty for ticket-only
	Selections  []model.Selection
	BookingID   uint64 // non-zero when checkout started from a pending booking
}

// CheckoutMetadata extracts and validates the reservation context from the
// string-pair metadata bag.
func (d EventData) CheckoutMetadata() (*CheckoutMetadata, error) {
	md := d.Metadata
	if md == nil {
		return nil, fmt.Errorf("webhook event carries no metadata")
	}

	var (
		cm  CheckoutMetadata
		err error
	)
	if cm.EventID, err = metaUint(md, "event_id"); err != nil {
		return nil, err
	}
	if cm.EventID == 0 {
		return nil, fmt.Errorf("metadata event_id is required")
	}
	if cm.TableID, err = metaUint(md, "table_id"); err != nil {
		return nil, err
	}
	if cm.UserID, err = metaUint(md, "user_id"); err != nil {
		return nil, err
	}
	if cm.BookingID, err = metaUint(md, "booking_id"); err != nil {
		return nil, err
	}
	party, err := metaUint(md, "party_size")
	if err != nil {
		return nil, err
	}
	if party == 0 {
		party = 1
	}
	cm.PartySize = uint32(party)
	cm.GuestName = md["guest_name"]
	cm.GuestEmail = md["guest_email"]
	cm.LockToken = md["lock_token"]

	if raw := md["seat_numbers"]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parse seat_numbers %q: %w", raw, err)
			}
			cm.SeatNumbers = append(cm.SeatNumbers, uint32(n))
		}
	}

	if raw := md["selections"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cm.Selections); err != nil {
			return nil, fmt.Errorf("parse selections: %w", err)
		}
		if err := model.ValidateSelections(cm.Selections); err != nil {
			return nil, err
		}
	}

	return &cm, nil
}

func metaUint(md map[string]string, key string) (uint64, error) {
	raw, ok := md[key]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse metadata %s=%q: %w", key, raw, err)
	}
	return n, nil
}
