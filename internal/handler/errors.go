package handler

import (
	"errors"
	"net/http"

	"fxledger/internal/domain"
	"fxledger/internal/logging"

	"github.com/gin-gonic/gin"
)

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrencyCode),
		errors.Is(err, domain.ErrSameCurrency),
		errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrPasswordTooShort):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrPortfolioNotFound),
		errors.Is(err, domain.ErrUnknownCurrency):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientHold):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStaleCache):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNoSourcesAvailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorResponse{
		Error:     err.Error(),
		ErrorType: logging.ErrorType(err),
	})
}
