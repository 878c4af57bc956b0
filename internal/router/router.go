// Package router wires HTTP routes to their handlers.  Registration is
// split by audience: operational endpoints, the public browse surface,
// the hold lifecycle, the payment webhook and the staff admin surface.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marceau-events/table-reservation/internal/handler"
)

// RegisterCore registers the operational endpoints every deployment
// carries: liveness for load balancers and the Prometheus scrape target.
func RegisterCore(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers the unauthenticated browse endpoints.  The
// response cache middleware applies to listings and detail only; the
// availability snapshot stays uncached here because the service layer
// owns its freshness.
func RegisterPublic(e *echo.Echo, events *handler.EventHandler, responseCache echo.MiddlewareFunc) {
	e.GET("/v1/events", events.List, responseCache)
	e.GET("/v1/events/:id", events.Get, responseCache)
	e.GET("/v1/search/events", events.Search, responseCache)
	e.GET("/v1/tables", events.Tables, responseCache)
	e.GET("/v1/events/:id/availability", events.Availability)
}

// RegisterHolds registers the hold lifecycle.  Only creation is rate
// limited; validation and completion are cheap and already gated by
// possession of a lock token.
func RegisterHolds(e *echo.Echo, holds *handler.HoldHandler, rateLimit echo.MiddlewareFunc) {
	e.POST("/v1/holds", holds.Create, rateLimit)
	e.POST("/v1/holds/validate", holds.Validate)
	e.POST("/v1/holds/complete", holds.Complete)
	e.POST("/v1/maintenance/holds/expire", holds.ExpireStale)
}

// RegisterWebhooks registers the payment gateway callback.
func RegisterWebhooks(e *echo.Echo, webhooks *handler.WebhookHandler) {
	e.POST("/v1/webhooks/payment", webhooks.HandlePayment)
}

// RegisterAdmin registers the staff surface under /v1/admin.  Staff
// authentication happens at the venue gateway in front of this service;
// requests arrive with the staff id stamped in a header.
func RegisterAdmin(e *echo.Echo, admin *handler.AdminHandler) {
	g := e.Group("/v1/admin")

	g.POST("/events", admin.CreateEvent)
	g.PATCH("/events/:id", admin.UpdateEvent)
	g.GET("/events", admin.ListEvents)

	g.POST("/bookings", admin.CreateBooking)
	g.PATCH("/bookings/:id", admin.UpdateBooking)
	g.GET("/bookings/:id", admin.GetBooking)
	g.POST("/bookings/:id/mark-paid", admin.MarkPaid)
	g.POST("/bookings/:id/cancel", admin.Cancel)
	g.POST("/bookings/:id/refund", admin.Refund)

	g.GET("/reconciliation/orphans", admin.Orphans)
}
