package grouppay

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/phillip/event-ticketing-go/credential"
	"github.com/phillip/event-ticketing-go/ledger"
	"github.com/phillip/event-ticketing-go/models"
	"github.com/phillip/event-ticketing-go/notify"
	"github.com/phillip/event-ticketing-go/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	mu       sync.Mutex
	requests []payment.ChargeRequest
	err      error
}

func (f *fakePayments) RequestCharge(_ context.Context, req payment.ChargeRequest) (*payment.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(f.requests))
	return &payment.Checkout{SessionID: id, URL: "https://checkout.example.com/" + id}, nil
}

// flakyIssuer signs real credentials but can be told to fail for chosen
// contributions.
type flakyIssuer struct {
	*credential.Issuer
	mu      sync.Mutex
	failFor map[string]bool
	calls   int
}

func (f *flakyIssuer) IssueCredential(ctx context.Context, t *models.Ticket) (string, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failFor[t.ContributionID]
	f.mu.Unlock()
	if fail {
		return "", credential.ErrUnavailable
	}
	return f.Issuer.IssueCredential(ctx, t)
}

func (f *flakyIssuer) setFailing(contributionID string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[contributionID] = fail
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, to string, _ notify.TicketDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	return r.err
}

// recordingImages remembers which tickets had a QR image published.
type recordingImages struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (r *recordingImages) PublishQR(_ context.Context, ticketID, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.published = append(r.published, ticketID)
	return "https://img.example.com/tickets/" + ticketID + ".png", nil
}

func (r *recordingImages) uploads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.published...)
}

type harness struct {
	svc      *Service
	store    *ledger.BoltStore
	payments *fakePayments
	issuer   *flakyIssuer
	images   *recordingImages
	notifier *recordingNotifier
}

const (
	testEventID = "evt-1"
	testTierID  = "tier-1"
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := ledger.NewBoltStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.PutEvent(ctx, &models.Event{
		ID:          testEventID,
		OrganizerID: "org-1",
		Title:       "Launch Party",
		Location:    "Nairobi",
		StartDate:   now.Add(72 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
	require.NoError(t, store.PutTier(ctx, &models.TicketTier{
		ID:        testTierID,
		EventID:   testEventID,
		Name:      "General Admission",
		Price:     decimal.NewFromInt(50),
		Quantity:  10,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	base, err := credential.NewIssuer("test-secret")
	require.NoError(t, err)

	h := &harness{
		store:    store,
		payments: &fakePayments{},
		issuer:   &flakyIssuer{Issuer: base, failFor: map[string]bool{}},
		images:   &recordingImages{},
		notifier: &recordingNotifier{},
	}
	h.svc, err = NewService(Options{
		Store:    store,
		Payments: h.payments,
		Issuer:   h.issuer,
		Images:   h.images,
		Notifier: h.notifier,
		Currency: "usd",
		AppURL:   "https://app.example.com",
	})
	require.NoError(t, err)
	return h
}

// openPool creates a pool of quantity tickets at 50 each.
func (h *harness) openPool(t *testing.T, quantity int) *models.FundingPool {
	t.Helper()
	pool, err := h.svc.OpenPool(context.Background(), models.Principal{ID: "creator"}, testEventID, testTierID, quantity)
	require.NoError(t, err)
	return pool
}

func (h *harness) contribute(t *testing.T, poolID, who string, amount int64) *ContributionReceipt {
	t.Helper()
	r, err := h.svc.Contribute(context.Background(), ContributeRequest{
		PoolID:           poolID,
		ContributorID:    who,
		ContributorEmail: who + "@example.com",
		Amount:           decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return r
}

func (h *harness) settle(t *testing.T, poolID, contributionID string, outcome payment.Outcome) {
	t.Helper()
	require.NoError(t, h.svc.HandleSettlement(context.Background(), settlement(poolID, contributionID, outcome)))
}

func settlement(poolID, contributionID string, outcome payment.Outcome) payment.Settlement {
	return payment.Settlement{
		Correlation: payment.Correlation{PoolID: poolID, ContributionID: contributionID},
		PaymentRef:  "pi_" + contributionID,
		Outcome:     outcome,
	}
}

func (h *harness) poolStatus(t *testing.T, poolID string) models.PoolStatus {
	t.Helper()
	pool, err := h.store.GetPool(context.Background(), poolID)
	require.NoError(t, err)
	return pool.Status
}

func (h *harness) ticketCount(t *testing.T, poolID string) int {
	t.Helper()
	rows, err := h.store.ListContributions(context.Background(), poolID)
	require.NoError(t, err)
	n := 0
	for _, c := range rows {
		if _, err := h.store.TicketForContribution(context.Background(), c.ID); err == nil {
			n++
		}
	}
	return n
}

func (h *harness) tierSold(t *testing.T) int {
	t.Helper()
	tier, err := h.store.GetTier(context.Background(), testTierID)
	require.NoError(t, err)
	return tier.SoldQuantity
}
