package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/model"
	"github.com/marceau-events/table-reservation/internal/service"
)

// HoldHandler exposes the seat hold lifecycle over HTTP.  Everything here
// is a thin adapter; the rules live in service.HoldService.
type HoldHandler struct {
	holds      *service.HoldService
	cutoffDays int
	log        zerolog.Logger
}

func NewHoldHandler(holds *service.HoldService, cutoffDays int, log zerolog.Logger) *HoldHandler {
	return &HoldHandler{holds: holds, cutoffDays: cutoffDays, log: log}
}

type createHoldRequest struct {
	EventID     uint64            `json:"event_id" validate:"required"`
	TableID     uint64            `json:"table_id" validate:"required"`
	SeatNumbers []uint32          `json:"seat_numbers" validate:"omitempty,dive,gt=0"`
	PartySize   uint32            `json:"party_size" validate:"required,gte=1"`
	UserID      uint64            `json:"user_id"`
	SessionID   string            `json:"session_id" validate:"omitempty,max=64"`
	Selections  []model.Selection `json:"selections"`
}

type holdGrantResponse struct {
	LockToken   string `json:"lock_token"`
	ExpiresInMS int64  `json:"expires_in_ms"`
	ExpiresAt   string `json:"expires_at"`
}

// Create handles POST /v1/holds.  A granted hold returns 201 with the lock
// token; business refusals return 409 with a code and a human reason.
func (h *HoldHandler) Create(c echo.Context) error {
	var req createHoldRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := model.ValidateSelections(req.Selections); err != nil {
		return badRequest(c, err.Error())
	}

	// Anonymous widgets get a server-side session id so their holds are
	// still attributable and rate-limitable on later requests.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	grant, err := h.holds.CreateHold(c.Request().Context(), service.CreateHoldInput{
		EventID:     req.EventID,
		TableID:     req.TableID,
		SeatNumbers: req.SeatNumbers,
		PartySize:   req.PartySize,
		UserID:      req.UserID,
		SessionID:   sessionID,
		Selections:  req.Selections,
		CutoffDays:  h.cutoffDays,
	})
	if err != nil {
		return writeErr(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, holdGrantResponse{
		LockToken:   grant.LockToken,
		ExpiresInMS: grant.ExpiresInMS(),
		ExpiresAt:   grant.ExpiresAt.UTC().Format(timeLayout),
	})
}

type validateHoldRequest struct {
	LockToken string `json:"lock_token" validate:"required,len=64"`
	EventID   uint64 `json:"event_id" validate:"required"`
	TableID   uint64 `json:"table_id" validate:"required"`
}

// Validate handles POST /v1/holds/validate.  Invalid is a normal answer,
// not an error: the response is 200 either way, with a code explaining a
// negative.
func (h *HoldHandler) Validate(c echo.Context) error {
	var req validateHoldRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	valid, code, err := h.holds.ValidateHold(c.Request().Context(), req.LockToken, req.EventID, req.TableID)
	if err != nil {
		return writeErr(c, h.log, err)
	}
	if valid {
		return c.JSON(http.StatusOK, echo.Map{"valid": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": false, "code": code})
}

type completeHoldRequest struct {
	LockToken string `json:"lock_token" validate:"required,len=64"`
}

// Complete handles POST /v1/holds/complete.  Completion is idempotent;
// completing an unknown or already finished hold reports completed=false.
func (h *HoldHandler) Complete(c echo.Context) error {
	var req completeHoldRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	done, err := h.holds.CompleteHold(c.Request().Context(), req.LockToken)
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"completed": done})
}

// ExpireStale handles POST /v1/maintenance/holds/expire, the manual
// trigger for the same sweep the background ticker runs.
func (h *HoldHandler) ExpireStale(c echo.Context) error {
	n, err := h.holds.ExpireStaleHolds(c.Request().Context())
	if err != nil {
		return writeErr(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
