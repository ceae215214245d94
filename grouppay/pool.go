package grouppay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phillip/event-ticketing-go/metrics"
	"github.com/phillip/event-ticketing-go/models"
	"github.com/shopspring/decimal"
)

type CreatePoolRequest struct {
	EventID        string
	TicketTierID   string
	TargetQuantity int
	UnitPrice      decimal.Decimal
	CreatedBy      string
}

// CreatePool records a new pending pool. The target amount is fixed here
// and never recomputed.
func (s *Service) CreatePool(ctx context.Context, req CreatePoolRequest) (*models.FundingPool, error) {
	if req.EventID == "" || req.TicketTierID == "" {
		return nil, fmt.Errorf("%w: event and ticket tier are required", ErrInvalidRequest)
	}
	if req.TargetQuantity < 2 {
		return nil, fmt.Errorf("%w: a group payment needs at least 2 tickets", ErrInvalidRequest)
	}
	if !req.UnitPrice.IsPositive() {
		return nil, fmt.Errorf("%w: unit price must be positive", ErrInvalidRequest)
	}

	now := s.now()
	pool := &models.FundingPool{
		ID:             s.newID(),
		EventID:        req.EventID,
		TicketTierID:   req.TicketTierID,
		TargetQuantity: req.TargetQuantity,
		UnitPrice:      req.UnitPrice,
		TargetAmount:   req.UnitPrice.Mul(decimal.NewFromInt(int64(req.TargetQuantity))),
		Currency:       s.currency,
		CreatedBy:      req.CreatedBy,
		Status:         models.PoolPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePool(ctx, pool); err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	metrics.PoolsCreated.Inc()
	s.logger.Info().
		Str("pool_id", pool.ID).
		Str("tier_id", pool.TicketTierID).
		Int("quantity", pool.TargetQuantity).
		Str("target_amount", pool.TargetAmount.StringFixed(2)).
		Msg("Pool created")
	return pool, nil
}

// OpenPool creates a pool for quantity tickets of a tier, priced from the
// catalog. The tier must belong to the event, be on sale and have enough
// tickets left.
func (s *Service) OpenPool(ctx context.Context, principal models.Principal, eventID, tierID string, quantity int) (*models.FundingPool, error) {
	tier, err := s.store.GetTier(ctx, tierID)
	if err != nil {
		return nil, fmt.Errorf("ticket tier %s: %w", tierID, err)
	}
	if tier.EventID != eventID {
		return nil, fmt.Errorf("%w: tier does not belong to event", ErrInvalidRequest)
	}
	if !tier.IsActive {
		return nil, fmt.Errorf("%w: tier is not on sale", ErrInvalidRequest)
	}
	if quantity > tier.Available() {
		return nil, fmt.Errorf("%w: only %d tickets left", ErrInvalidRequest, tier.Available())
	}

	return s.CreatePool(ctx, CreatePoolRequest{
		EventID:        eventID,
		TicketTierID:   tierID,
		TargetQuantity: quantity,
		UnitPrice:      tier.Price,
		CreatedBy:      principal.ID,
	})
}

// ContributionView is a contribution as shown to pool members. Payment
// references stay internal.
type ContributionView struct {
	ID               string                    `json:"id"`
	ContributorEmail string                    `json:"contributor_email"`
	Amount           decimal.Decimal           `json:"amount"`
	Status           models.ContributionStatus `json:"status"`
	Invited          bool                      `json:"invited"`
	CreatedAt        time.Time                 `json:"created_at"`
}

type PoolView struct {
	Pool          *models.FundingPool `json:"pool"`
	SumCompleted  decimal.Decimal     `json:"sum_completed"`
	Remaining     decimal.Decimal     `json:"remaining"`
	Contributions []ContributionView  `json:"contributions"`
}

// GetPool returns the pool with its progress computed from persisted rows.
func (s *Service) GetPool(ctx context.Context, poolID string) (*PoolView, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", poolID, err)
	}
	sum, err := s.store.SumCompleted(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("sum pool %s: %w", poolID, err)
	}
	rows, err := s.store.ListContributions(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}

	view := &PoolView{
		Pool:          pool,
		SumCompleted:  sum,
		Remaining:     remaining(pool, sum),
		Contributions: make([]ContributionView, 0, len(rows)),
	}
	for _, c := range rows {
		view.Contributions = append(view.Contributions, ContributionView{
			ID:               c.ID,
			ContributorEmail: c.ContributorEmail,
			Amount:           c.Amount,
			Status:           c.Status,
			Invited:          c.Invited(),
			CreatedAt:        c.CreatedAt,
		})
	}
	return view, nil
}

// CancelPool closes a pending pool for good. Only the creator or an admin
// may cancel.
func (s *Service) CancelPool(ctx context.Context, poolID string, principal models.Principal) error {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return fmt.Errorf("pool %s: %w", poolID, err)
	}
	if pool.CreatedBy != principal.ID && !principal.IsAdmin {
		return ErrForbidden
	}

	ok, err := s.store.TransitionPool(ctx, poolID, models.PoolPending, models.PoolCancelled, s.now())
	if err != nil {
		return fmt.Errorf("cancel pool: %w", err)
	}
	if !ok {
		return ErrPoolClosed
	}

	s.logger.Info().Str("pool_id", poolID).Str("by", principal.ID).Msg("Pool cancelled")
	return nil
}

func remaining(pool *models.FundingPool, sum decimal.Decimal) decimal.Decimal {
	r := pool.TargetAmount.Sub(sum)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
