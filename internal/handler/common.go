package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/repository"
	"github.com/marceau-events/table-reservation/internal/service"
)

// StaffHeader identifies the staff member behind admin requests.  The admin
// surface sits behind the venue's gateway, which authenticates staff and
// stamps this header; the value lands in bookings.modified_by for audit.
const StaffHeader = "X-Staff-ID"

// timeLayout is the timestamp format used in every response body.
const timeLayout = time.RFC3339

// writeErr translates errors from the service layer into HTTP responses.
// Business refusals carry a machine code plus a human reason; missing rows
// become 404; anything else is infrastructure and stays opaque.
func writeErr(c echo.Context, log zerolog.Logger, err error) error {
	var ce *service.ConflictError
	if errors.As(err, &ce) {
		return c.JSON(http.StatusConflict, echo.Map{"code": ce.Code, "reason": ce.Reason})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// staffID reads the staff identity header; 0 means unattributed.
func staffID(c echo.Context) uint64 {
	id, err := strconv.ParseUint(c.Request().Header.Get(StaffHeader), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
