package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/repository"
	"github.com/marceau-events/table-reservation/internal/service"
)

// EventSearcher is the slice of the event repository the search endpoint
// needs.
type EventSearcher interface {
	Search(ctx context.Context, q repository.EventSearchQuery) ([]model.Event, int64, error)
}

// EventHandler serves the public browse endpoints: event listings, search,
// event detail, the venue table layout and the availability snapshot
// guests poll while choosing a table.
type EventHandler struct {
	store        service.Store
	searcher     EventSearcher
	availability *service.AvailabilityService
	log          zerolog.Logger
}

func NewEventHandler(store service.Store, searcher EventSearcher, availability *service.AvailabilityService, log zerolog.Logger) *EventHandler {
	return &EventHandler{store: store, searcher: searcher, availability: availability, log: log}
}

// publicEvent is the sanitized event shape.  The embedded availability
// counters are the denormalized ones from the event row; clients that need
// an authoritative figure poll the availability endpoint.
type publicEvent struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	StartsAt        string `json:"starts_at"`
	SeatingType     string `json:"seating_type"`
	TotalSeats      uint32 `json:"total_seats"`
	TotalTables     uint32 `json:"total_tables"`
	AvailableSeats  uint32 `json:"available_seats"`
	AvailableTables uint32 `json:"available_tables"`
}

func toPublicEvent(e *model.Event) publicEvent {
	return publicEvent{
		ID:              e.ID,
		Name:            e.Name,
		StartsAt:        e.StartsAt.UTC().Format(timeLayout),
		SeatingType:     string(e.SeatingType),
		TotalSeats:      e.TotalSeats,
		TotalTables:     e.TotalTables,
		AvailableSeats:  e.AvailableSeats,
		AvailableTables: e.AvailableTables,
	}
}

// List handles GET /v1/events.
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.store.ListEvents(c.Request().Context())
	if err != nil {
		return writeErr(c, h.log, err)
	}
	items := make([]publicEvent, 0, len(events))
	for i := range events {
		items = append(items, toPublicEvent(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid event id")
	}
	event, err := h.store.GetEventByID(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toPublicEvent(event))
}

// Availability handles GET /v1/events/:id/availability.  The snapshot
// comes from the TTL cache; write paths invalidate it, so staleness is
// bounded and conflicts are caught again at write time regardless.
func (h *EventHandler) Availability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid event id")
	}
	snap, err := h.availability.Snapshot(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Search handles GET /v1/search/events.  Filters: name (substring),
// seating_type, time (upcoming by default, or past/any), page, page_size.
func (h *EventHandler) Search(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	seating := strings.TrimSpace(c.QueryParam("seating_type"))
	switch seating {
	case "", string(model.SeatingTables), string(model.SeatingTickets):
	default:
		return badRequest(c, "seating_type must be tables or tickets")
	}

	events, total, err := h.searcher.Search(c.Request().Context(), repository.EventSearchQuery{
		Name:        strings.TrimSpace(c.QueryParam("name")),
		SeatingType: seating,
		TimeFilter:  strings.TrimSpace(c.QueryParam("time")),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		return writeErr(c, h.log, err)
	}

	items := make([]publicEvent, 0, len(events))
	for i := range events {
		items = append(items, toPublicEvent(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type publicTable struct {
	ID       uint64 `json:"id"`
	Number   uint32 `json:"number"`
	Section  string `json:"section"`
	Capacity uint32 `json:"capacity"`
}

// Tables handles GET /v1/tables, the static venue layout guests pick from.
func (h *EventHandler) Tables(c echo.Context) error {
	tables, err := h.store.ListTables(c.Request().Context())
	if err != nil {
		return writeErr(c, h.log, err)
	}
	items := make([]publicTable, 0, len(tables))
	for _, t := range tables {
		items = append(items, publicTable{ID: t.ID, Number: t.Number, Section: t.Section, Capacity: t.Capacity})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
