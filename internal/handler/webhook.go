package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/clock"
	"github.com/marceau-events/table-reservation/internal/payment"
	"github.com/marceau-events/table-reservation/internal/service"
)

// maxWebhookBody bounds how much of a delivery we will read.  Real gateway
// events are a few KB; anything near the limit is garbage.
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment gateway deliveries.  Status codes are
// the contract with the gateway's retry loop: 2xx acknowledges (including
// duplicates and business-level mismatches, which are resolved internally),
// 400 rejects inauthentic or unreadable deliveries for good, 500 asks the
// gateway to redeliver because our own infrastructure failed.
type WebhookHandler struct {
	reconciler *service.PaymentReconciler
	secret     string
	tolerance  time.Duration
	clk        clock.Clock
	log        zerolog.Logger
}

func NewWebhookHandler(reconciler *service.PaymentReconciler, secret string, tolerance time.Duration, clk clock.Clock, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, secret: secret, tolerance: tolerance, clk: clk, log: log}
}

// HandlePayment handles POST /v1/webhooks/payment.
func (h *WebhookHandler) HandlePayment(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}

	sig := c.Request().Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(body, sig, h.secret, h.clk.Now(), h.tolerance); err != nil {
		h.log.Warn().Err(err).Msg("webhook signature rejected")
		return badRequest(c, "invalid signature")
	}

	env, err := payment.Parse(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("authentic webhook with malformed body")
		return badRequest(c, "malformed event")
	}

	if err := h.reconciler.HandleEvent(c.Request().Context(), env); err != nil {
		h.log.Error().Err(err).Str("gateway_event_id", env.ID).Msg("webhook processing failed, gateway will retry")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
