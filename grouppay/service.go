// Package grouppay implements group payments: several contributors jointly
// fund a multi-ticket purchase, and once the pool is fully funded every
// completed contribution is converted into exactly one ticket.
//
// The ledger is the only shared state. Intake reserves a contributor slot
// and opens a checkout, settlement applies payment results idempotently,
// and finalization is decided by a compare-and-set on the pool status so
// that only one caller ever issues tickets for a pool.
package grouppay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phillip/event-ticketing-go/ledger"
	"github.com/phillip/event-ticketing-go/logger"
	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/notify"
	"github.com/phillip/event-ticketing-go/payment"
	"github.com/rs/zerolog"
)

// PaymentCollaborator opens a charge for a contribution.
type PaymentCollaborator interface {
	RequestCharge(ctx context.Context, req payment.ChargeRequest) (*payment.Checkout, error)
}

// CredentialIssuer mints and checks the scannable token on a ticket.
type CredentialIssuer interface {
	IssueCredential(ctx context.Context, t *models.Ticket) (string, error)
	VerifyCredential(token string) (string, error)
}

// ImageStore publishes a QR rendering of a credential and returns its URL.
type ImageStore interface {
	PublishQR(ctx context.Context, ticketID, token string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, to string, details notify.TicketDetails) error
}

// Options wires a Service. Store, Payments and Issuer are required.
type Options struct {
	Store    ledger.Store
	Payments PaymentCollaborator
	Issuer   CredentialIssuer
	Images   ImageStore // optional
	Notifier Notifier   // optional, defaults to notify.LogNotifier
	Currency string
	AppURL   string

	Now   func() time.Time
	NewID func() string
}

// Service runs the group payment flow against an injected ledger.
type Service struct {
	store    ledger.Store
	payments PaymentCollaborator
	issuer   CredentialIssuer
	images   ImageStore
	notifier Notifier
	currency string
	appURL   string
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Payments == nil || opts.Issuer == nil {
		return nil, errors.New("grouppay: store, payments and issuer are required")
	}

	s := &Service{
		store:    opts.Store,
		payments: opts.Payments,
		issuer:   opts.Issuer,
		images:   opts.Images,
		notifier: opts.Notifier,
		currency: opts.Currency,
		appURL:   opts.AppURL,
		now:      opts.Now,
		newID:    opts.NewID,
		logger:   logger.WithComponent("grouppay"),
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{}
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

