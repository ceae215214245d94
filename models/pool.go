package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PoolStatus string

const (
	PoolPending   PoolStatus = "pending"
	PoolCompleted PoolStatus = "completed"
	PoolCancelled PoolStatus = "cancelled"
)

// FundingPool is a group payment: several contributors jointly paying for
// TargetQuantity tickets of one tier.
type FundingPool struct {
	ID             string          `bson:"_id" json:"id"`
	EventID        string          `bson:"event_id" json:"event_id"`
	TicketTierID   string          `bson:"ticket_tier_id" json:"ticket_tier_id"`
	TargetQuantity int             `bson:"target_quantity" json:"target_quantity"`
	UnitPrice      decimal.Decimal `bson:"unit_price" json:"unit_price"`
	TargetAmount   decimal.Decimal `bson:"target_amount" json:"target_amount"` // fixed at creation
	Currency       string          `bson:"currency" json:"currency"`
	CreatedBy      string          `bson:"created_by" json:"created_by"`
	Status         PoolStatus      `bson:"status" json:"status"` // pending, completed, cancelled
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`

	// Enriched fields
	Contributions []Contribution `bson:"-" json:"contributions,omitempty"`
}
