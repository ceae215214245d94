// Package ledger is the durable record of funding pools, their contributions
// and the tickets issued from them.
//
// Two backends implement Store: MongoStore for production and BoltStore, an
// embedded single-file store used for development, the CLI and tests. Both
// enforce the write-time invariants the group payment flow depends on:
//
//   - one active contribution slot per (pool, contributor id) for direct
//     contributions and per (pool, contributor email) for every contribution
//   - contribution settlement only moves a pending row to a terminal status
//   - pool status changes are compare-and-set on the previous status
//   - at most one ticket per contribution
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/phillip/event-ticketing-go/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateContributor = errors.New("contributor already holds a slot in this pool")
	ErrTicketExists         = errors.New("ticket already issued for contribution")
)

// Store is the ledger-access interface injected into the group payment service.
type Store interface {
	CreatePool(ctx context.Context, pool *models.FundingPool) error
	GetPool(ctx context.Context, id string) (*models.FundingPool, error)
	ListPoolsByStatus(ctx context.Context, status models.PoolStatus) ([]models.FundingPool, error)

	// TransitionPool moves a pool from one status to another only if it is
	// still in from. It reports whether this call performed the transition.
	TransitionPool(ctx context.Context, id string, from, to models.PoolStatus, at time.Time) (bool, error)

	// InsertContribution fails with ErrDuplicateContributor when the
	// contributor already holds a slot in the pool.
	InsertContribution(ctx context.Context, c *models.Contribution) error
	GetContribution(ctx context.Context, id string) (*models.Contribution, error)
	ListContributions(ctx context.Context, poolID string) ([]models.Contribution, error)
	SetCheckoutSession(ctx context.Context, contributionID, sessionID string) error

	// SettleContribution moves a pending contribution to completed or failed.
	// It returns the stored row and whether this call performed the
	// transition; an already terminal row is returned unchanged with false.
	SettleContribution(ctx context.Context, id string, to models.ContributionStatus, paymentRef string, at time.Time) (*models.Contribution, bool, error)

	// SumCompleted sums the amounts of completed contributions from
	// persisted rows.
	SumCompleted(ctx context.Context, poolID string) (decimal.Decimal, error)

	// InsertTicket fails with ErrTicketExists when the contribution already
	// has a ticket.
	InsertTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	SetTicketQRImage(ctx context.Context, ticketID, url string) error
	TicketForContribution(ctx context.Context, contributionID string) (*models.Ticket, error)
	ListTicketsByOwner(ctx context.Context, ownerID string) ([]models.Ticket, error)

	GetTier(ctx context.Context, id string) (*models.TicketTier, error)
	PutTier(ctx context.Context, tier *models.TicketTier) error
	IncrementTierSold(ctx context.Context, tierID string, n int) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	PutEvent(ctx context.Context, event *models.Event) error

	Close() error
}

var (
	_ Store = (*BoltStore)(nil)
	_ Store = (*MongoStore)(nil)
)
