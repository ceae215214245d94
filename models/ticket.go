package models

import "time"

type Ticket struct {
	ID             string    `bson:"_id" json:"id"`
	EventID        string    `bson:"event_id" json:"event_id"`
	TicketTierID   string    `bson:"ticket_tier_id" json:"ticket_tier_id"`
	PoolID         string    `bson:"pool_id,omitempty" json:"pool_id,omitempty"`
	ContributionID string    `bson:"contribution_id" json:"contribution_id"` // one ticket per contribution
	OwnerID        string    `bson:"owner_id" json:"owner_id"`
	OwnerEmail     string    `bson:"owner_email" json:"owner_email"`
	Credential     string    `bson:"credential" json:"credential"`
	QRImageURL     string    `bson:"qr_image_url,omitempty" json:"qr_image_url,omitempty"`
	PaymentRef     string    `bson:"payment_reference,omitempty" json:"payment_reference,omitempty"`
	Status         string    `bson:"status" json:"status"` // active
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

const TicketActive = "active"
