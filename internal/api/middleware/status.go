package middleware

import (
	"errors"
	"net/http"

	"mdmc/internal/api/validator"
	"mdmc/internal/errs"

	"github.com/labstack/echo/v4"
)

// StatusOf maps an error returned by a handler to its HTTP status.
func StatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return errs.Status(e.Kind)
	}
	return http.StatusInternalServerError
}
