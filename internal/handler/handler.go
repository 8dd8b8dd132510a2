package handler

import (
	"net/http"

	"udsp-service/pkg/config"

	"github.com/labstack/echo/v4"
)

// Matches the original schema's bcrypt salt rounds
const bcryptCost = 12

var devMode bool

// Init wires handler-level settings from configuration
func Init(cfg *config.Config) {
	devMode = cfg.IsDevelopment()
}

// serverError responds with a generic 500. Failure detail is included only
// in development mode; it is always logged by the caller.
func serverError(c echo.Context, message string, err error) error {
	body := echo.Map{"error": message}
	if devMode && err != nil {
		body["detail"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, body)
}

// validationFailed responds with the field-level messages collected by the
// model validators
func validationFailed(c echo.Context, errs []string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":  "Validation failed",
		"errors": errs,
	})
}
