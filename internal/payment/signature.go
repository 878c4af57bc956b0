// Package payment parses and authenticates payment gateway webhooks.  The
// gateway signs each delivery; nothing in the payload is trusted until the
// signature has been verified.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the webhook signature, in
// the form "t=<unix seconds>,v1=<hex hmac>".
const SignatureHeader = "X-Gateway-Signature"

var (
	ErrMalformedSignature = errors.New("malformed webhook signature")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
	ErrTimestampTooOld    = errors.New("webhook timestamp outside tolerance")
)

// hmac256 computes the hex HMAC-SHA256 of body under key.
func hmac256(body, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Sign produces the signature header value for a body at a given time.
// Used by tests and by the local gateway simulator.
func Sign(body []byte, secret string, at time.Time) string {
	ts := at.Unix()
	payload := fmt.Sprintf("%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hmac256([]byte(payload), []byte(secret)))
}

// VerifySignature checks a webhook delivery against the shared secret.
// The signed payload is "<timestamp>.<body>", so neither can be swapped
// independently.  Deliveries whose timestamp is further than tolerance
// from now, in either direction, are rejected to blunt replay.
func VerifySignature(body []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	var (
		ts  int64
		sig string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return ErrMalformedSignature
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrMalformedSignature
			}
			ts = parsed
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return ErrMalformedSignature
	}

	sent := time.Unix(ts, 0)
	age := now.Sub(sent)
	if age < 0 {
		age = -age
	}
	if age > tolerance {
		return ErrTimestampTooOld
	}

	payload := fmt.Sprintf("%d.%s", ts, body)
	want := hmac256([]byte(payload), []byte(secret))
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrSignatureMismatch
	}
	return nil
}
