// Package handler holds what the HTTP handlers share.
package handler

import (
	"errors"
	"net/http"

	ierr "go-firestore-admin/internal/errors"
	"go-firestore-admin/internal/logger"

	"github.com/labstack/echo/v4"
)

// ErrorResponse writes err with the status its kind maps to. Validation errors list the
// failing fields.
func ErrorResponse(c echo.Context, err error) error {
	l := logger.FromContext(c.Request().Context())

	var verr *ierr.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, ierr.NotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case ierr.IsStorage(err):
		l.Error().Err(err).Msg("blob store failure")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "image storage failed"})
	}

	l.Error().Err(err).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
