package grouppay

import (
	"context"
	"errors"
	"testing"

	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributeOpensCheckout(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)

	r, err := h.svc.Contribute(context.Background(), ContributeRequest{
		PoolID:           pool.ID,
		ContributorID:    "alice",
		ContributorEmail: "  Alice@Example.COM ",
		Amount:           decimal.RequireFromString("40.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", r.SessionID)
	assert.NotEmpty(t, r.CheckoutURL)

	require.Len(t, h.payments.requests, 1)
	req := h.payments.requests[0]
	assert.Equal(t, pool.ID, req.Correlation.PoolID)
	assert.Equal(t, r.ContributionID, req.Correlation.ContributionID)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("40.25")))
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "https://app.example.com/group-payment/"+pool.ID+"?success=true", req.SuccessURL)

	c, err := h.store.GetContribution(context.Background(), r.ContributionID)
	require.NoError(t, err)
	assert.Equal(t, models.ContributionPending, c.Status)
	assert.Equal(t, "alice@example.com", c.ContributorEmail)
	assert.Equal(t, "cs_test_1", c.CheckoutSessionID)
}

func TestContributeRejections(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     ContributeRequest
		wantErr error
	}{
		{"zero amount", ContributeRequest{ContributorID: "a", ContributorEmail: "a@example.com", Amount: decimal.Zero}, ErrInvalidAmount},
		{"negative amount", ContributeRequest{ContributorID: "a", ContributorEmail: "a@example.com", Amount: decimal.NewFromInt(-1)}, ErrInvalidAmount},
		{"sub-cent amount", ContributeRequest{ContributorID: "a", ContributorEmail: "a@example.com", Amount: decimal.RequireFromString("10.005")}, ErrInvalidAmount},
		{"bad email", ContributeRequest{ContributorID: "a", ContributorEmail: "not-an-email", Amount: decimal.NewFromInt(10)}, ErrInvalidRequest},
		{"over target", ContributeRequest{ContributorID: "a", ContributorEmail: "a@example.com", Amount: decimal.RequireFromString("100.01")}, ErrExceedsRemaining},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.PoolID = pool.ID
			_, err := h.svc.Contribute(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := h.svc.Contribute(ctx, ContributeRequest{PoolID: "missing", ContributorID: "a", ContributorEmail: "a@example.com", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, h.payments.requests, "rejected pledges never reach the payment provider")
}

func TestScenarioB_ExceedsRemaining(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	r := h.contribute(t, pool.ID, "alice", 50)
	h.settle(t, pool.ID, r.ContributionID, payment.Succeeded)

	_, err := h.svc.Contribute(context.Background(), ContributeRequest{
		PoolID: pool.ID, ContributorID: "bob", ContributorEmail: "bob@example.com", Amount: decimal.NewFromInt(60),
	})
	assert.ErrorIs(t, err, ErrExceedsRemaining)
	assert.Equal(t, models.PoolPending, h.poolStatus(t, pool.ID))
}

func TestScenarioC_DuplicateContributor(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 4)
	ctx := context.Background()
	h.contribute(t, pool.ID, "alice", 50)

	_, err := h.svc.Contribute(ctx, ContributeRequest{
		PoolID: pool.ID, ContributorID: "alice", ContributorEmail: "other@example.com", Amount: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrDuplicateContributor, "same contributor id")

	_, err = h.svc.Contribute(ctx, ContributeRequest{
		PoolID: pool.ID, ContributorID: "carol", ContributorEmail: "ALICE@example.com", Amount: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrDuplicateContributor, "same email, different case")

	// Other pools are unaffected.
	other := h.openPool(t, 2)
	h.contribute(t, other.ID, "alice", 50)
}

func TestChargeFailureReleasesSlot(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	ctx := context.Background()

	h.payments.err = errors.New("stripe down")
	_, err := h.svc.Contribute(ctx, ContributeRequest{
		PoolID: pool.ID, ContributorID: "alice", ContributorEmail: "alice@example.com", Amount: decimal.NewFromInt(50),
	})
	assert.ErrorIs(t, err, ErrPaymentUnavailable)

	rows, err := h.store.ListContributions(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ContributionFailed, rows[0].Status)

	h.payments.err = nil
	h.contribute(t, pool.ID, "alice", 50)
}

func TestDefaultShare(t *testing.T) {
	pool := &models.FundingPool{TargetQuantity: 3, TargetAmount: decimal.NewFromInt(100)}

	tests := []struct {
		name      string
		sum       string
		completed int
		want      string
		wantErr   error
	}{
		{"even split rounds up", "0", 0, "33.34", nil},
		{"after one share", "33.34", 1, "33.33", nil},
		{"last slot takes the rest", "66.67", 2, "33.33", nil},
		{"completed beyond quantity", "90", 3, "10", nil},
		{"fully funded", "100", 2, "0", ErrExceedsRemaining},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultShare(pool, decimal.RequireFromString(tt.sum), tt.completed)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestInviteUsesDefaultShare(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 3)
	ctx := context.Background()
	inviter := models.Principal{ID: "alice", Email: "alice@example.com"}

	r, err := h.svc.Invite(ctx, pool.ID, inviter, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(50)))

	c, err := h.store.GetContribution(ctx, r.ContributionID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", c.ContributorEmail)
	assert.Equal(t, "alice", c.ContributorID)
	assert.True(t, c.Invited())

	// The inviter can invite someone else and still pay their own share.
	_, err = h.svc.Invite(ctx, pool.ID, inviter, "carol@example.com")
	require.NoError(t, err)
	h.contribute(t, pool.ID, "alice", 50)

	_, err = h.svc.Invite(ctx, pool.ID, inviter, "BOB@example.com")
	assert.ErrorIs(t, err, ErrDuplicateContributor)
}
