package grouppay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fundWithoutFinalizing marks contributions completed directly in the
// ledger, as if the process stopped right after settling them.
func (h *harness) fundWithoutFinalizing(t *testing.T, poolID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, ok, err := h.store.SettleContribution(context.Background(), id, models.ContributionCompleted, "pi_"+id, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestTryFinalizeExactlyOnceUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 3)
	ids := []string{
		h.contribute(t, pool.ID, "a", 50).ContributionID,
		h.contribute(t, pool.ID, "b", 50).ContributionID,
		h.contribute(t, pool.ID, "c", 50).ContributionID,
	}
	h.fundWithoutFinalizing(t, pool.ID, ids...)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.svc.TryFinalize(context.Background(), pool.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, models.PoolCompleted, h.poolStatus(t, pool.ID))
	assert.Equal(t, 3, h.ticketCount(t, pool.ID))
	assert.Equal(t, 3, h.tierSold(t))
	assert.Equal(t, 3, h.issuer.calls)
}

func TestTryFinalizeNotYetFunded(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	a := h.contribute(t, pool.ID, "a", 50)
	h.fundWithoutFinalizing(t, pool.ID, a.ContributionID)

	ok, err := h.svc.TryFinalize(context.Background(), pool.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.PoolPending, h.poolStatus(t, pool.ID))

	_, err = h.svc.TryFinalize(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartialIssuanceResumes(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	a := h.contribute(t, pool.ID, "alice", 50)
	b := h.contribute(t, pool.ID, "bob", 50)

	h.issuer.setFailing(b.ContributionID, true)
	h.settle(t, pool.ID, a.ContributionID, payment.Succeeded)
	h.settle(t, pool.ID, b.ContributionID, payment.Succeeded)

	assert.Equal(t, models.PoolCompleted, h.poolStatus(t, pool.ID), "issuance failure never reverts funding")
	assert.Equal(t, 1, h.ticketCount(t, pool.ID))
	assert.Equal(t, 1, h.tierSold(t))

	// Still unavailable: the sweep reports the failure and issues nothing twice.
	report, err := h.svc.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.TicketsIssued)
	assert.Equal(t, 1, report.Failures)

	h.issuer.setFailing(b.ContributionID, false)
	report, err = h.svc.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TicketsIssued)
	assert.Zero(t, report.Failures)

	assert.Equal(t, 2, h.ticketCount(t, pool.ID))
	assert.Equal(t, 2, h.tierSold(t))

	n, err := h.svc.ResumeIssuance(context.Background(), pool.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecoverFinalizesStrandedPools(t *testing.T) {
	h := newHarness(t)
	funded := h.openPool(t, 2)
	a := h.contribute(t, funded.ID, "alice", 50)
	b := h.contribute(t, funded.ID, "bob", 50)
	h.fundWithoutFinalizing(t, funded.ID, a.ContributionID, b.ContributionID)

	partial := h.openPool(t, 2)
	c := h.contribute(t, partial.ID, "carol", 50)
	h.fundWithoutFinalizing(t, partial.ID, c.ContributionID)

	report, err := h.svc.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.PoolsFinalized)
	assert.Zero(t, report.Failures)

	assert.Equal(t, models.PoolCompleted, h.poolStatus(t, funded.ID))
	assert.Equal(t, 2, h.ticketCount(t, funded.ID))
	assert.Equal(t, models.PoolPending, h.poolStatus(t, partial.ID))
	assert.Zero(t, h.ticketCount(t, partial.ID))
}

func TestResumeIssuanceFinalizesPendingPool(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	a := h.contribute(t, pool.ID, "alice", 50)
	b := h.contribute(t, pool.ID, "bob", 50)
	h.fundWithoutFinalizing(t, pool.ID, a.ContributionID, b.ContributionID)

	n, err := h.svc.ResumeIssuance(context.Background(), pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.PoolCompleted, h.poolStatus(t, pool.ID))
}

func TestResumeIssuanceCountsOnlyItsOwnTickets(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	a := h.contribute(t, pool.ID, "alice", 50)
	b := h.contribute(t, pool.ID, "bob", 50)
	h.fundWithoutFinalizing(t, pool.ID, a.ContributionID, b.ContributionID)
	h.issuer.setFailing(b.ContributionID, true)

	n, err := h.svc.ResumeIssuance(context.Background(), pool.ID)
	assert.ErrorIs(t, err, ErrIssuanceUnavailable)
	assert.Equal(t, 1, n, "only alice's ticket was minted")

	h.issuer.setFailing(b.ContributionID, false)
	n, err = h.svc.ResumeIssuance(context.Background(), pool.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "alice's existing ticket is not counted again")
	assert.Equal(t, 2, h.ticketCount(t, pool.ID))
}

func TestConcurrentIssuersPublishOneImagePerTicket(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	a := h.contribute(t, pool.ID, "alice", 50)
	b := h.contribute(t, pool.ID, "bob", 50)
	h.fundWithoutFinalizing(t, pool.ID, a.ContributionID, b.ContributionID)

	// Completed with no tickets yet, as after a crash mid-issuance.
	ok, err := h.store.TransitionPool(context.Background(), pool.ID, models.PoolPending, models.PoolCompleted, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		issued int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := h.svc.ResumeIssuance(context.Background(), pool.ID)
			assert.NoError(t, err)
			mu.Lock()
			issued += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, issued)
	assert.Equal(t, 2, h.ticketCount(t, pool.ID))
	assert.Equal(t, 2, h.tierSold(t))

	uploads := h.images.uploads()
	require.Len(t, uploads, 2, "racing issuers must not publish images for discarded tickets")
	for _, id := range []string{a.ContributionID, b.ContributionID} {
		ticket, err := h.store.TicketForContribution(context.Background(), id)
		require.NoError(t, err)
		assert.Contains(t, uploads, ticket.ID)
		assert.Equal(t, "https://img.example.com/tickets/"+ticket.ID+".png", ticket.QRImageURL)
	}
}

func TestImageFailureStillIssuesTicket(t *testing.T) {
	h := newHarness(t)
	h.images.err = errors.New("cdn down")
	pool := h.openPool(t, 2)
	a := h.contribute(t, pool.ID, "alice", 50)
	b := h.contribute(t, pool.ID, "bob", 50)
	h.settle(t, pool.ID, a.ContributionID, payment.Succeeded)
	h.settle(t, pool.ID, b.ContributionID, payment.Succeeded)

	ticket, err := h.store.TicketForContribution(context.Background(), a.ContributionID)
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.Credential)
	assert.Empty(t, ticket.QRImageURL)
}

func TestVerifyTicket(t *testing.T) {
	h := newHarness(t)
	pool := h.openPool(t, 2)
	a := h.contribute(t, pool.ID, "alice", 50)
	b := h.contribute(t, pool.ID, "bob", 50)
	h.settle(t, pool.ID, a.ContributionID, payment.Succeeded)
	h.settle(t, pool.ID, b.ContributionID, payment.Succeeded)

	ctx := context.Background()
	issued, err := h.store.TicketForContribution(ctx, a.ContributionID)
	require.NoError(t, err)

	got, err := h.svc.VerifyTicket(ctx, issued.Credential)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
	assert.Equal(t, "alice", got.OwnerID)

	// A valid signature over a ticket that was never stored is rejected.
	forged, err := h.issuer.Issuer.IssueCredential(ctx, &models.Ticket{ID: "nope", EventID: testEventID})
	require.NoError(t, err)
	_, err = h.svc.VerifyTicket(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// A second credential minted for a stored ticket does not replace the stored one.
	reminted, err := h.issuer.Issuer.IssueCredential(ctx, issued)
	require.NoError(t, err)
	_, err = h.svc.VerifyTicket(ctx, reminted)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = h.svc.VerifyTicket(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
