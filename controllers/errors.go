package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	grouppay "github.com/phillip/event-ticketing-go/grouppay"
	"github.com/phillip/event-ticketing-go/logger"
)

// statusFor maps a group payment error to its HTTP status and the message
// shown to the caller.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, grouppay.ErrInvalidRequest),
		errors.Is(err, grouppay.ErrInvalidAmount),
		errors.Is(err, grouppay.ErrInvalidCredential):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, grouppay.ErrPoolClosed),
		errors.Is(err, grouppay.ErrExceedsRemaining),
		errors.Is(err, grouppay.ErrDuplicateContributor):
		return http.StatusConflict, err.Error()
	case errors.Is(err, grouppay.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, grouppay.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, grouppay.ErrPaymentUnavailable),
		errors.Is(err, grouppay.ErrIssuanceUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log := logger.WithComponent("http")
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}
