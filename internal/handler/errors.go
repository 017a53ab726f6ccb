package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lottery-storefront/internal/logging"
	"github.com/iliyamo/lottery-storefront/internal/model"
	"github.com/iliyamo/lottery-storefront/internal/service"
)

// writeError maps service errors to JSON responses:
//
//   *service.ConflictError   -> 409 with the unavailable ticket numbers
//   *service.NotFoundError   -> 404
//   *service.ValidationError -> 400
//   *service.StorageError    -> 503, generic retry-later message
//   anything else            -> 500
func writeError(c echo.Context, err error) error {
	var conflict *service.ConflictError
	var notFound *service.NotFoundError
	var invalid *service.ValidationError
	var storage *service.StorageError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       conflict.Error(),
			"unavailable": conflict.Tickets,
		})
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFound.Error()})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Error()})
	case errors.As(err, &storage):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, please retry later"})
	default:
		logging.FromContext(c.Request().Context()).WithError(err).Error("unexpected handler error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// ticketParam parses the :number path parameter.
func ticketParam(c echo.Context) (model.TicketNumber, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		return 0, false
	}
	t := model.TicketNumber(n)
	return t, t.Valid()
}

func invalidTicket(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket number"})
}
