package grouppay

import (
	"errors"

	"github.com/phillip/event-ticketing-go/credential"
	"github.com/phillip/event-ticketing-go/ledger"
	"github.com/phillip/event-ticketing-go/payment"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrPoolClosed       = errors.New("pool is not accepting contributions")
	ErrInvalidAmount    = errors.New("invalid contribution amount")
	ErrExceedsRemaining = errors.New("amount exceeds remaining balance")
	ErrForbidden        = errors.New("forbidden")
	ErrDataIntegrity    = errors.New("settlement does not match ledger")

	ErrDuplicateContributor = ledger.ErrDuplicateContributor
	ErrNotFound             = ledger.ErrNotFound
	ErrIssuanceUnavailable  = credential.ErrUnavailable
	ErrInvalidCredential    = credential.ErrInvalidCredential
	ErrPaymentUnavailable   = payment.ErrUnavailable
)
