package grouppay

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/phillip/event-ticketing-go/metrics"
	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/payment"
	"github.com/shopspring/decimal"
)

type ContributeRequest struct {
	PoolID           string
	ContributorID    string
	ContributorEmail string
	Amount           decimal.Decimal
	InvitedBy        string
}

// ContributionReceipt is returned to the caller, who redirects the
// contributor to CheckoutURL.
type ContributionReceipt struct {
	ContributionID string          `json:"contribution_id"`
	Amount         decimal.Decimal `json:"amount"`
	SessionID      string          `json:"session_id"`
	CheckoutURL    string          `json:"url"`
}

// Contribute validates a pledge against fresh pool state, reserves the
// contributor's slot and opens a checkout for the amount.
func (s *Service) Contribute(ctx context.Context, req ContributeRequest) (*ContributionReceipt, error) {
	email := normalizeEmail(req.ContributorEmail)
	if email == "" || req.ContributorID == "" {
		return nil, s.reject("invalid_request", fmt.Errorf("%w: contributor id and a valid email are required", ErrInvalidRequest))
	}

	pool, err := s.store.GetPool(ctx, req.PoolID)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", req.PoolID, err)
	}
	if pool.Status != models.PoolPending {
		return nil, s.reject("pool_closed", ErrPoolClosed)
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(2)) {
		return nil, s.reject("invalid_amount", ErrInvalidAmount)
	}

	sum, err := s.store.SumCompleted(ctx, pool.ID)
	if err != nil {
		return nil, fmt.Errorf("sum pool %s: %w", pool.ID, err)
	}
	left := remaining(pool, sum)
	if req.Amount.GreaterThan(left) {
		return nil, s.reject("exceeds_remaining",
			fmt.Errorf("%w: %s left of %s", ErrExceedsRemaining, left.StringFixed(2), pool.TargetAmount.StringFixed(2)))
	}

	now := s.now()
	c := &models.Contribution{
		ID:               s.newID(),
		PoolID:           pool.ID,
		ContributorID:    req.ContributorID,
		ContributorEmail: email,
		InvitedBy:        req.InvitedBy,
		Amount:           req.Amount,
		Status:           models.ContributionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertContribution(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateContributor) {
			return nil, s.reject("duplicate_contributor", err)
		}
		return nil, fmt.Errorf("insert contribution: %w", err)
	}

	checkout, err := s.payments.RequestCharge(ctx, payment.ChargeRequest{
		Amount:   c.Amount,
		Currency: pool.Currency,
		Correlation: payment.Correlation{
			PoolID:         pool.ID,
			ContributionID: c.ID,
		},
		CustomerEmail: email,
		Description:   fmt.Sprintf("Group payment contribution (%d tickets)", pool.TargetQuantity),
		SuccessURL:    fmt.Sprintf("%s/group-payment/%s?success=true", s.appURL, pool.ID),
		CancelURL:     fmt.Sprintf("%s/group-payment/%s?canceled=true", s.appURL, pool.ID),
	})
	if err != nil {
		// No charge exists, so the slot goes back.
		if _, _, serr := s.store.SettleContribution(ctx, c.ID, models.ContributionFailed, "", s.now()); serr != nil {
			s.logger.Error().Err(serr).Str("contribution_id", c.ID).Msg("Failed to release slot after charge error")
		}
		metrics.ContributionsRejected.WithLabelValues("payment_unavailable").Inc()
		s.logger.Warn().Err(err).Str("pool_id", pool.ID).Str("contribution_id", c.ID).Msg("Charge request failed")
		if errors.Is(err, ErrPaymentUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	if err := s.store.SetCheckoutSession(ctx, c.ID, checkout.SessionID); err != nil {
		// The callback carries the contribution id, so a missing session id only affects support lookups.
		s.logger.Warn().Err(err).Str("contribution_id", c.ID).Msg("Failed to record checkout session")
	}

	metrics.ContributionsCreated.Inc()
	s.logger.Info().
		Str("pool_id", pool.ID).
		Str("contribution_id", c.ID).
		Str("amount", c.Amount.StringFixed(2)).
		Bool("invited", c.Invited()).
		Msg("Contribution opened")

	return &ContributionReceipt{
		ContributionID: c.ID,
		Amount:         c.Amount,
		SessionID:      checkout.SessionID,
		CheckoutURL:    checkout.URL,
	}, nil
}

// Invite opens a contribution for inviteeEmail with the default share of
// what is left. The inviter's id stands in as the contributor id.
func (s *Service) Invite(ctx context.Context, poolID string, inviter models.Principal, inviteeEmail string) (*ContributionReceipt, error) {
	pool, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", poolID, err)
	}
	if pool.Status != models.PoolPending {
		return nil, s.reject("pool_closed", ErrPoolClosed)
	}

	rows, err := s.store.ListContributions(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	sum := decimal.Zero
	completed := 0
	for _, c := range rows {
		if c.Status == models.ContributionCompleted {
			sum = sum.Add(c.Amount)
			completed++
		}
	}

	share, err := DefaultShare(pool, sum, completed)
	if err != nil {
		return nil, s.reject("exceeds_remaining", err)
	}

	return s.Contribute(ctx, ContributeRequest{
		PoolID:           poolID,
		ContributorID:    inviter.ID,
		ContributorEmail: inviteeEmail,
		Amount:           share,
		InvitedBy:        inviter.ID,
	})
}

// DefaultShare splits what is left of the target evenly over the ticket
// slots not yet paid for. Shares are rounded up to the cent and never exceed
// the remaining balance, so the last slot pays exactly what is left.
func DefaultShare(pool *models.FundingPool, sumCompleted decimal.Decimal, completedCount int) (decimal.Decimal, error) {
	left := remaining(pool, sumCompleted)
	if !left.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: pool is fully funded", ErrExceedsRemaining)
	}

	slots := pool.TargetQuantity - completedCount
	if slots <= 1 {
		return left, nil
	}

	share := left.Div(decimal.NewFromInt(int64(slots))).Shift(2).Ceil().Shift(-2)
	if share.GreaterThan(left) {
		return left, nil
	}
	return share, nil
}

func (s *Service) reject(reason string, err error) error {
	metrics.ContributionsRejected.WithLabelValues(reason).Inc()
	return err
}

func normalizeEmail(raw string) string {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(addr.Address)
}
