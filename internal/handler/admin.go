package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/service"
)

// AdminHandler exposes the staff surface: event inventory management,
// manual bookings, booking edits behind the conflict guard, out-of-band
// payment recording, cancellation, refunds and the reconciliation queue.
type AdminHandler struct {
	admin *service.AdminService
	log   zerolog.Logger
}

func NewAdminHandler(admin *service.AdminService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, log: log}
}

type eventRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	StartsAt    string `json:"starts_at" validate:"required"`
	SeatingType string `json:"seating_type" validate:"required,oneof=tables tickets"`
	TotalSeats  uint32 `json:"total_seats" validate:"required,gte=1"`
	TotalTables uint32 `json:"total_tables" validate:"required_if=SeatingType tables,excluded_if=SeatingType tickets"`
}

func (r eventRequest) toInput() (service.CreateEventInput, error) {
	startsAt, err := time.Parse(time.RFC3339, r.StartsAt)
	if err != nil {
		return service.CreateEventInput{}, err
	}
	return service.CreateEventInput{
		Name:        r.Name,
		StartsAt:    startsAt,
		SeatingType: model.SeatingType(r.SeatingType),
		TotalSeats:  r.TotalSeats,
		TotalTables: r.TotalTables,
	}, nil
}

type adminEventResponse struct {
	publicEvent
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toAdminEvent(e *model.Event) adminEventResponse {
	return adminEventResponse{
		publicEvent: toPublicEvent(e),
		CreatedAt:   e.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   e.UpdatedAt.UTC().Format(timeLayout),
	}
}

// CreateEvent handles POST /v1/admin/events.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	in, err := req.toInput()
	if err != nil {
		return badRequest(c, "starts_at must be an RFC3339 timestamp")
	}
	event, err := h.admin.CreateEvent(c.Request().Context(), in, staffID(c))
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, toAdminEvent(event))
}

// UpdateEvent handles PATCH /v1/admin/events/:id.
func (h *AdminHandler) UpdateEvent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid event id")
	}
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	in, err := req.toInput()
	if err != nil {
		return badRequest(c, "starts_at must be an RFC3339 timestamp")
	}
	event, err := h.admin.UpdateEvent(c.Request().Context(), id, in, staffID(c))
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toAdminEvent(event))
}

// ListEvents handles GET /v1/admin/events.
func (h *AdminHandler) ListEvents(c echo.Context) error {
	events, err := h.admin.ListEvents(c.Request().Context())
	if err != nil {
		return writeErr(c, h.log, err)
	}
	items := make([]adminEventResponse, 0, len(events))
	for i := range events {
		items = append(items, toAdminEvent(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type bookingResponse struct {
	ID          uint64            `json:"id"`
	EventID     uint64            `json:"event_id"`
	TableID     *uint64           `json:"table_id,omitempty"`
	UserID      uint64            `json:"user_id,omitempty"`
	PartySize   uint32            `json:"party_size"`
	GuestName   string            `json:"guest_name"`
	GuestEmail  string            `json:"guest_email,omitempty"`
	Selections  []model.Selection `json:"selections,omitempty"`
	Status      string            `json:"status"`
	AmountCents uint32            `json:"amount_cents"`
	RefundCents uint32            `json:"refund_cents,omitempty"`
	PaymentRef  *string           `json:"payment_ref,omitempty"`
	RefundRef   *string           `json:"refund_ref,omitempty"`
	Disputed    bool              `json:"disputed"`
	Version     uint64            `json:"version"`
	ModifiedBy  *uint64           `json:"modified_by,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		EventID:     b.EventID,
		TableID:     b.TableID,
		UserID:      b.UserID,
		PartySize:   b.PartySize,
		GuestName:   b.GuestName,
		GuestEmail:  b.GuestEmail,
		Selections:  b.Selections,
		Status:      string(b.Status),
		AmountCents: b.AmountCents,
		RefundCents: b.RefundCents,
		PaymentRef:  b.PaymentRef,
		RefundRef:   b.RefundRef,
		Disputed:    b.Disputed,
		Version:     b.Version,
		ModifiedBy:  b.ModifiedBy,
		CreatedAt:   b.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   b.UpdatedAt.UTC().Format(timeLayout),
	}
}

type manualBookingRequest struct {
	EventID    uint64            `json:"event_id" validate:"required"`
	TableID    *uint64           `json:"table_id" validate:"omitempty,gt=0"`
	UserID     uint64            `json:"user_id"`
	PartySize  uint32            `json:"party_size" validate:"omitempty,gte=1"`
	GuestName  string            `json:"guest_name" validate:"required,max=200"`
	GuestEmail string            `json:"guest_email" validate:"omitempty,email"`
	Selections []model.Selection `json:"selections"`
	Status     string            `json:"status" validate:"required,oneof=reserved comp"`
}

// CreateBooking handles POST /v1/admin/bookings: a staff-created booking
// that starts unpaid as reserved or comp.
func (h *AdminHandler) CreateBooking(c echo.Context) error {
	var req manualBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := model.ValidateSelections(req.Selections); err != nil {
		return badRequest(c, err.Error())
	}

	booking, err := h.admin.CreateManualBooking(c.Request().Context(), service.ManualBookingInput{
		EventID:    req.EventID,
		TableID:    req.TableID,
		UserID:     req.UserID,
		PartySize:  req.PartySize,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		Selections: req.Selections,
		Status:     model.BookingStatus(req.Status),
		AdminID:    staffID(c),
	})
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(booking))
}

type updateBookingRequest struct {
	Version    uint64            `json:"version" validate:"required"`
	TableID    *uint64           `json:"table_id" validate:"omitempty,gt=0"`
	PartySize  uint32            `json:"party_size" validate:"omitempty,gte=1"`
	GuestName  *string           `json:"guest_name"`
	GuestEmail *string           `json:"guest_email" validate:"omitempty,email"`
	Selections []model.Selection `json:"selections"`
}

// UpdateBooking handles PATCH /v1/admin/bookings/:id.  Omitted fields keep
// their values; the version field carries the compare-and-swap expectation.
func (h *AdminHandler) UpdateBooking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req updateBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Selections != nil {
		if err := model.ValidateSelections(req.Selections); err != nil {
			return badRequest(c, err.Error())
		}
	}

	booking, err := h.admin.UpdateBooking(c.Request().Context(), service.UpdateBookingInput{
		BookingID:  id,
		Version:    req.Version,
		TableID:    req.TableID,
		PartySize:  req.PartySize,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		Selections: req.Selections,
		AdminID:    staffID(c),
	})
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

type markPaidRequest struct {
	Version     uint64 `json:"version" validate:"required"`
	AmountCents uint32 `json:"amount_cents" validate:"required,gte=1"`
	PaymentRef  string `json:"payment_ref" validate:"omitempty,max=128"`
}

// MarkPaid handles POST /v1/admin/bookings/:id/mark-paid, recording a
// payment taken outside the gateway (cash, bank transfer).  Without an
// external reference a synthetic one is minted so the booking still links
// to something searchable.
func (h *AdminHandler) MarkPaid(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req markPaidRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.PaymentRef == "" {
		req.PaymentRef = "manual_" + uuid.NewString()
	}

	booking, err := h.admin.MarkReservedPaid(c.Request().Context(), id, req.Version, req.AmountCents, req.PaymentRef, staffID(c))
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

type cancelRequest struct {
	Version uint64 `json:"version" validate:"required"`
}

// Cancel handles POST /v1/admin/bookings/:id/cancel.  The row survives
// with status canceled; inventory opens up on the next availability
// computation.
func (h *AdminHandler) Cancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	booking, err := h.admin.CancelBooking(c.Request().Context(), id, req.Version, staffID(c))
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

type refundRequest struct {
	Version     uint64 `json:"version" validate:"required"`
	RefundCents uint32 `json:"refund_cents"`
	RefundRef   string `json:"refund_ref" validate:"omitempty,max=128"`
}

// Refund handles POST /v1/admin/bookings/:id/refund.  refund_cents of zero
// means a full refund of what was paid.
func (h *AdminHandler) Refund(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.RefundRef == "" {
		req.RefundRef = "rfnd_" + uuid.NewString()
	}

	booking, err := h.admin.RefundBooking(c.Request().Context(), id, req.Version, req.RefundCents, req.RefundRef, staffID(c))
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

// GetBooking handles GET /v1/admin/bookings/:id.
func (h *AdminHandler) GetBooking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid booking id")
	}
	booking, err := h.admin.GetBooking(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

type paymentEventResponse struct {
	ID             uint64  `json:"id"`
	GatewayEventID string  `json:"gateway_event_id"`
	Kind           string  `json:"kind"`
	Outcome        string  `json:"outcome"`
	BookingID      *uint64 `json:"booking_id,omitempty"`
	Note           string  `json:"note"`
	AmountCents    uint32  `json:"amount_cents"`
	CreatedAt      string  `json:"created_at"`
}

// Orphans handles GET /v1/admin/reconciliation/orphans: payments that
// arrived for seats we could not deliver and now need a human.
func (h *AdminHandler) Orphans(c echo.Context) error {
	orphans, err := h.admin.OrphanedPayments(c.Request().Context())
	if err != nil {
		return writeErr(c, h.log, err)
	}
	items := make([]paymentEventResponse, 0, len(orphans))
	for _, pe := range orphans {
		items = append(items, paymentEventResponse{
			ID:             pe.ID,
			GatewayEventID: pe.GatewayEventID,
			Kind:           pe.Kind,
			Outcome:        string(pe.Outcome),
			BookingID:      pe.BookingID,
			Note:           pe.Note,
			AmountCents:    pe.AmountCents,
			CreatedAt:      pe.CreatedAt.UTC().Format(timeLayout),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
