package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	grouppay "github.com/phillip/event-ticketing-go/grouppay"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{grouppay.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", grouppay.ErrInvalidAmount), http.StatusBadRequest},
		{grouppay.ErrPoolClosed, http.StatusConflict},
		{grouppay.ErrExceedsRemaining, http.StatusConflict},
		{grouppay.ErrDuplicateContributor, http.StatusConflict},
		{fmt.Errorf("pool x: %w", grouppay.ErrNotFound), http.StatusNotFound},
		{grouppay.ErrForbidden, http.StatusForbidden},
		{grouppay.ErrPaymentUnavailable, http.StatusServiceUnavailable},
		{grouppay.ErrIssuanceUnavailable, http.StatusServiceUnavailable},
		{grouppay.ErrDataIntegrity, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, msg := statusFor(errors.New("disk on fire"))
	assert.Equal(t, "internal error", msg, "internal errors are not echoed")
}
