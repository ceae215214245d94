package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/phillip/event-ticketing-go/models"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketPools                = []byte("pools")
	bucketContributions        = []byte("contributions")
	bucketPoolContributions    = []byte("pool_contributions")
	bucketSlots                = []byte("slots")
	bucketTickets              = []byte("tickets")
	bucketTicketByContribution = []byte("ticket_by_contribution")
	bucketTicketsByOwner       = []byte("tickets_by_owner")
	bucketTiers                = []byte("ticket_tiers")
	bucketEvents               = []byte("events")
)

// BoltStore implements Store using BoltDB. Every mutation runs in a single
// read-write transaction and bbolt serialises those, so check-then-write
// sequences inside one transaction are atomic.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketPools,
			bucketContributions,
			bucketPoolContributions,
			bucketSlots,
			bucketTickets,
			bucketTicketByContribution,
			bucketTicketsByOwner,
			bucketTiers,
			bucketEvents,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func getJSON(b *bolt.Bucket, key string, v interface{}) error {
	data := b.Get([]byte(key))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func putJSON(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// compositeKey joins parts with a NUL separator so prefix scans on one part
// never match a longer value that shares its leading bytes.
func compositeKey(parts ...string) []byte {
	return []byte(strings.Join(parts, "\x00"))
}

// forEachPrefix calls fn with the value of every key starting with prefix.
func forEachPrefix(b *bolt.Bucket, prefix []byte, fn func(v []byte) error) error {
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// slotKeys lists the uniqueness keys a contribution occupies while it holds
// its slot. Invitation rows carry the inviter as contributor id, so only
// their email is unique.
func slotKeys(c *models.Contribution) [][]byte {
	keys := [][]byte{compositeKey(c.PoolID, "email", c.ContributorEmail)}
	if !c.Invited() && c.ContributorID != "" {
		keys = append(keys, compositeKey(c.PoolID, "id", c.ContributorID))
	}
	return keys
}

// Pool operations
func (s *BoltStore) CreatePool(_ context.Context, pool *models.FundingPool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPools)
		if b.Get([]byte(pool.ID)) != nil {
			return fmt.Errorf("pool %s already exists", pool.ID)
		}
		return putJSON(b, pool.ID, pool)
	})
}

func (s *BoltStore) GetPool(_ context.Context, id string) (*models.FundingPool, error) {
	var pool models.FundingPool
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketPools), id, &pool)
	})
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *BoltStore) ListPoolsByStatus(_ context.Context, status models.PoolStatus) ([]models.FundingPool, error) {
	var pools []models.FundingPool
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPools).ForEach(func(k, v []byte) error {
			var pool models.FundingPool
			if err := json.Unmarshal(v, &pool); err != nil {
				return err
			}
			if pool.Status == status {
				pools = append(pools, pool)
			}
			return nil
		})
	})
	return pools, err
}

func (s *BoltStore) TransitionPool(_ context.Context, id string, from, to models.PoolStatus, at time.Time) (bool, error) {
	transitioned := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPools)
		var pool models.FundingPool
		if err := getJSON(b, id, &pool); err != nil {
			return err
		}
		if pool.Status != from {
			return nil
		}
		pool.Status = to
		pool.UpdatedAt = at
		transitioned = true
		return putJSON(b, id, &pool)
	})
	return transitioned, err
}

// Contribution operations
func (s *BoltStore) InsertContribution(_ context.Context, c *models.Contribution) error {
	c.SlotHeld = c.Status != models.ContributionFailed
	return s.db.Update(func(tx *bolt.Tx) error {
		slots := tx.Bucket(bucketSlots)
		keys := slotKeys(c)
		if c.SlotHeld {
			for _, k := range keys {
				if slots.Get(k) != nil {
					return ErrDuplicateContributor
				}
			}
			for _, k := range keys {
				if err := slots.Put(k, []byte(c.ID)); err != nil {
					return err
				}
			}
		}

		if err := putJSON(tx.Bucket(bucketContributions), c.ID, c); err != nil {
			return err
		}
		return tx.Bucket(bucketPoolContributions).Put(compositeKey(c.PoolID, c.ID), []byte(c.ID))
	})
}

func (s *BoltStore) GetContribution(_ context.Context, id string) (*models.Contribution, error) {
	var c models.Contribution
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketContributions), id, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BoltStore) listContributions(tx *bolt.Tx, poolID string) ([]models.Contribution, error) {
	var out []models.Contribution
	rows := tx.Bucket(bucketContributions)
	err := forEachPrefix(tx.Bucket(bucketPoolContributions), compositeKey(poolID, ""), func(v []byte) error {
		var c models.Contribution
		if err := getJSON(rows, string(v), &c); err != nil {
			return fmt.Errorf("contribution index points at %s: %w", v, err)
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func (s *BoltStore) ListContributions(_ context.Context, poolID string) ([]models.Contribution, error) {
	var out []models.Contribution
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = s.listContributions(tx, poolID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *BoltStore) SetCheckoutSession(_ context.Context, contributionID, sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContributions)
		var c models.Contribution
		if err := getJSON(b, contributionID, &c); err != nil {
			return err
		}
		c.CheckoutSessionID = sessionID
		return putJSON(b, contributionID, &c)
	})
}

func (s *BoltStore) SettleContribution(_ context.Context, id string, to models.ContributionStatus, paymentRef string, at time.Time) (*models.Contribution, bool, error) {
	var c models.Contribution
	transitioned := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContributions)
		if err := getJSON(b, id, &c); err != nil {
			return err
		}
		if c.Status != models.ContributionPending {
			return nil
		}

		c.Status = to
		c.UpdatedAt = at
		if paymentRef != "" {
			c.PaymentRef = paymentRef
		}
		if to == models.ContributionFailed && c.SlotHeld {
			slots := tx.Bucket(bucketSlots)
			for _, k := range slotKeys(&c) {
				if bytes.Equal(slots.Get(k), []byte(c.ID)) {
					if err := slots.Delete(k); err != nil {
						return err
					}
				}
			}
			c.SlotHeld = false
		}
		transitioned = true
		return putJSON(b, id, &c)
	})
	if err != nil {
		return nil, false, err
	}
	return &c, transitioned, nil
}

func (s *BoltStore) SumCompleted(_ context.Context, poolID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := s.db.View(func(tx *bolt.Tx) error {
		rows, err := s.listContributions(tx, poolID)
		if err != nil {
			return err
		}
		for _, c := range rows {
			if c.Status == models.ContributionCompleted {
				sum = sum.Add(c.Amount)
			}
		}
		return nil
	})
	return sum, err
}

// Ticket operations
func (s *BoltStore) InsertTicket(_ context.Context, t *models.Ticket) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		byContribution := tx.Bucket(bucketTicketByContribution)
		if byContribution.Get([]byte(t.ContributionID)) != nil {
			return ErrTicketExists
		}
		if err := byContribution.Put([]byte(t.ContributionID), []byte(t.ID)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketTicketsByOwner).Put(compositeKey(t.OwnerID, t.ID), []byte(t.ID)); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketTickets), t.ID, t)
	})
}

func (s *BoltStore) GetTicket(_ context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketTickets), id, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStore) SetTicketQRImage(_ context.Context, ticketID, url string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rows := tx.Bucket(bucketTickets)
		var t models.Ticket
		if err := getJSON(rows, ticketID, &t); err != nil {
			return err
		}
		t.QRImageURL = url
		return putJSON(rows, ticketID, &t)
	})
}

func (s *BoltStore) TicketForContribution(_ context.Context, contributionID string) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketTicketByContribution).Get([]byte(contributionID))
		if id == nil {
			return ErrNotFound
		}
		return getJSON(tx.Bucket(bucketTickets), string(id), &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStore) ListTicketsByOwner(_ context.Context, ownerID string) ([]models.Ticket, error) {
	var out []models.Ticket
	err := s.db.View(func(tx *bolt.Tx) error {
		rows := tx.Bucket(bucketTickets)
		return forEachPrefix(tx.Bucket(bucketTicketsByOwner), compositeKey(ownerID, ""), func(v []byte) error {
			var t models.Ticket
			if err := getJSON(rows, string(v), &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Catalog operations
func (s *BoltStore) GetTier(_ context.Context, id string) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketTiers), id, &tier)
	})
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

func (s *BoltStore) PutTier(_ context.Context, tier *models.TicketTier) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketTiers), tier.ID, tier)
	})
}

func (s *BoltStore) IncrementTierSold(_ context.Context, tierID string, n int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTiers)
		var tier models.TicketTier
		if err := getJSON(b, tierID, &tier); err != nil {
			return err
		}
		tier.SoldQuantity += n
		return putJSON(b, tierID, &tier)
	})
}

func (s *BoltStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketEvents), id, &event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *BoltStore) PutEvent(_ context.Context, event *models.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketEvents), event.ID, event)
	})
}
