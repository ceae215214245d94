package ledger

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phillip/event-ticketing-go/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMongoTestStore connects to MONGO_TEST_URI and uses a throwaway
// database that is dropped when the test ends.
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)

	dbName := "ledger_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	store, err := NewMongoStore(ctx, client, dbName)
	if err != nil {
		_ = client.Disconnect(ctx)
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		_ = store.db.Drop(context.Background())
		store.Close()
	})
	return store
}

// forEachStore runs fn against every Store implementation. MongoDB is
// skipped unless MONGO_TEST_URI points at a server.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("bolt", func(t *testing.T) {
		fn(t, newTestStore(t))
	})
	t.Run("mongo", func(t *testing.T) {
		fn(t, newMongoTestStore(t))
	})
}

func TestStoreRejectsDuplicateContributors(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreatePool(ctx, testPool("p1")))
		require.NoError(t, store.CreatePool(ctx, testPool("p2")))
		require.NoError(t, store.InsertContribution(ctx, testContribution("c1", "p1", "u1", "a@example.com", 50)))

		tests := []struct {
			name    string
			c       *models.Contribution
			wantErr error
		}{
			{"same contributor id", testContribution("c2", "p1", "u1", "other@example.com", 10), ErrDuplicateContributor},
			{"same email", testContribution("c3", "p1", "u2", "a@example.com", 10), ErrDuplicateContributor},
			{"other pool", testContribution("c4", "p2", "u1", "a@example.com", 10), nil},
			{"new contributor", testContribution("c5", "p1", "u3", "c@example.com", 10), nil},
		}
		for _, tt := range tests {
			err := store.InsertContribution(ctx, tt.c)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr, tt.name)
				continue
			}
			assert.NoError(t, err, tt.name)
		}
	})
}

func TestStoreInvitationsOnlyClaimEmail(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreatePool(ctx, testPool("p1")))
		require.NoError(t, store.InsertContribution(ctx, testContribution("c1", "p1", "u1", "u1@example.com", 30)))

		for i, email := range []string{"x@example.com", "y@example.com"} {
			inv := testContribution([]string{"i1", "i2"}[i], "p1", "u1", email, 30)
			inv.InvitedBy = "u1"
			require.NoError(t, store.InsertContribution(ctx, inv), email)
		}

		dup := testContribution("i3", "p1", "u1", "x@example.com", 30)
		dup.InvitedBy = "u1"
		assert.ErrorIs(t, store.InsertContribution(ctx, dup), ErrDuplicateContributor)
	})
}

func TestStoreFailedContributionFreesSlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreatePool(ctx, testPool("p1")))
		require.NoError(t, store.InsertContribution(ctx, testContribution("c1", "p1", "u1", "a@example.com", 50)))

		c, ok, err := store.SettleContribution(ctx, "c1", models.ContributionFailed, "", time.Now())
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, c.SlotHeld)

		require.NoError(t, store.InsertContribution(ctx, testContribution("c2", "p1", "u1", "a@example.com", 50)))
		assert.ErrorIs(t, store.InsertContribution(ctx, testContribution("c3", "p1", "u1", "a@example.com", 50)), ErrDuplicateContributor)
	})
}

func TestStoreTransitionPoolMovesOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreatePool(ctx, testPool("p1")))

		ok, err := store.TransitionPool(ctx, "p1", models.PoolPending, models.PoolCompleted, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.TransitionPool(ctx, "p1", models.PoolPending, models.PoolCompleted, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.TransitionPool(ctx, "missing", models.PoolPending, models.PoolCompleted, time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreSettleRedeliveryIsNoop(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreatePool(ctx, testPool("p1")))
		require.NoError(t, store.InsertContribution(ctx, testContribution("c1", "p1", "u1", "a@example.com", 50)))

		c, ok, err := store.SettleContribution(ctx, "c1", models.ContributionCompleted, "pi_1", time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "pi_1", c.PaymentRef)

		for _, to := range []models.ContributionStatus{models.ContributionCompleted, models.ContributionFailed} {
			c, ok, err = store.SettleContribution(ctx, "c1", to, "pi_2", time.Now())
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, models.ContributionCompleted, c.Status)
			assert.Equal(t, "pi_1", c.PaymentRef)
		}

		_, _, err = store.SettleContribution(ctx, "missing", models.ContributionCompleted, "", time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreSumCompletedIsExact(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreatePool(ctx, testPool("p1")))

		amounts := map[string]string{"c1": "33.33", "c2": "33.33", "c3": "33.34", "c4": "10.10"}
		emails := map[string]string{"c1": "a", "c2": "b", "c3": "c", "c4": "d"}
		for _, id := range []string{"c1", "c2", "c3", "c4"} {
			c := testContribution(id, "p1", "u-"+id, emails[id]+"@example.com", 0)
			c.Amount = decimal.RequireFromString(amounts[id])
			require.NoError(t, store.InsertContribution(ctx, c))
		}

		sum, err := store.SumCompleted(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, sum.IsZero())

		for _, id := range []string{"c1", "c2", "c3"} {
			_, _, err := store.SettleContribution(ctx, id, models.ContributionCompleted, "pi_"+id, time.Now())
			require.NoError(t, err)
		}
		_, _, err = store.SettleContribution(ctx, "c4", models.ContributionFailed, "", time.Now())
		require.NoError(t, err)

		sum, err = store.SumCompleted(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(100)), "got %s", sum)
	})
}

func TestStoreOneTicketPerContribution(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		ticket := &models.Ticket{
			ID:             "t1",
			EventID:        "evt-1",
			TicketTierID:   "tier-1",
			ContributionID: "c1",
			OwnerID:        "u1",
			Credential:     "tok",
			PaymentRef:     "pi_c1",
			Status:         models.TicketActive,
			CreatedAt:      time.Now().UTC(),
		}
		require.NoError(t, store.InsertTicket(ctx, ticket))

		again := *ticket
		again.ID = "t2"
		assert.ErrorIs(t, store.InsertTicket(ctx, &again), ErrTicketExists)

		got, err := store.TicketForContribution(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "t1", got.ID)
		assert.Equal(t, "pi_c1", got.PaymentRef)

		require.NoError(t, store.SetTicketQRImage(ctx, "t1", "https://img.example.com/t1.png"))
		got, err = store.GetTicket(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "https://img.example.com/t1.png", got.QRImageURL)

		_, err = store.GetTicket(ctx, "t2")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
