package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "pending"
	ContributionCompleted ContributionStatus = "completed"
	ContributionFailed    ContributionStatus = "failed"
)

// Terminal reports whether no further settlement can change the status.
func (s ContributionStatus) Terminal() bool {
	return s == ContributionCompleted || s == ContributionFailed
}

type Contribution struct {
	ID                string             `bson:"_id" json:"id"`
	PoolID            string             `bson:"pool_id" json:"pool_id"`
	ContributorID     string             `bson:"contributor_id" json:"contributor_id"`
	ContributorEmail  string             `bson:"contributor_email" json:"contributor_email"`
	InvitedBy         string             `bson:"invited_by" json:"invited_by,omitempty"`
	Amount            decimal.Decimal    `bson:"amount" json:"amount"`
	Status            ContributionStatus `bson:"status" json:"status"` // pending, completed, failed
	PaymentRef        string             `bson:"payment_reference,omitempty" json:"payment_reference,omitempty"`
	CheckoutSessionID string             `bson:"checkout_session_id,omitempty" json:"checkout_session_id,omitempty"`
	SlotHeld          bool               `bson:"slot_held" json:"slot_held"` // false once failed
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// Invited reports whether the row was opened by someone else on the contributor's behalf.
func (c *Contribution) Invited() bool {
	return c.InvitedBy != ""
}
