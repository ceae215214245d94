package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          string    `bson:"_id" json:"id"`
	OrganizerID string    `bson:"organizer_id" json:"organizer_id"`
	Title       string    `bson:"title" json:"title"`
	Location    string    `bson:"location,omitempty" json:"location,omitempty"`
	StartDate   time.Time `bson:"start_date" json:"start_date"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

type TicketTier struct {
	ID           string          `bson:"_id" json:"id"`
	EventID      string          `bson:"event_id" json:"event_id"`
	Name         string          `bson:"name" json:"name"`
	Description  string          `bson:"description,omitempty" json:"description,omitempty"`
	Price        decimal.Decimal `bson:"price" json:"price"`
	Quantity     int             `bson:"quantity" json:"quantity"`
	SoldQuantity int             `bson:"sold_quantity" json:"sold_quantity"`
	IsActive     bool            `bson:"is_active" json:"is_active"`
	CreatedAt    time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at" json:"updated_at"`
}

// Available is the number of tickets that can still be sold from the tier.
func (t *TicketTier) Available() int {
	if t.SoldQuantity >= t.Quantity {
		return 0
	}
	return t.Quantity - t.SoldQuantity
}
