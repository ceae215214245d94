package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/event-ticketing-go/config"
	grouppay "github.com/phillip/event-ticketing-go/grouppay"
	middleware "github.com/phillip/event-ticketing-go/middleware"
	models "github.com/phillip/event-ticketing-go/models"
)

// ticketView is a ticket as shown to its holder and to door staff. The
// payment reference stays in the ledger.
type ticketView struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	TicketTierID string    `json:"ticket_tier_id"`
	PoolID       string    `json:"pool_id,omitempty"`
	OwnerEmail   string    `json:"owner_email"`
	Credential   string    `json:"credential"`
	QRImageURL   string    `json:"qr_image_url,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func newTicketView(t *models.Ticket) ticketView {
	return ticketView{
		ID:           t.ID,
		EventID:      t.EventID,
		TicketTierID: t.TicketTierID,
		PoolID:       t.PoolID,
		OwnerEmail:   t.OwnerEmail,
		Credential:   t.Credential,
		QRImageURL:   t.QRImageURL,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
	}
}

// ---------------- LIST MINE ----------------
func ListMyTickets(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.CurrentPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		tickets, err := cfg.GroupPay.ListMyTickets(ctx, p)
		if err != nil {
			respondError(c, err)
			return
		}
		views := make([]ticketView, 0, len(tickets))
		for i := range tickets {
			views = append(views, newTicketView(&tickets[i]))
		}

		c.JSON(http.StatusOK, views)
	}
}

// ---------------- VERIFY ----------------
func VerifyTicket(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role != "admin" && role != "organizer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "only organizers can verify tickets"})
			return
		}

		var input struct {
			Credential string `json:"credential" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		ticket, err := cfg.GroupPay.VerifyTicket(ctx, input.Credential)
		if err != nil {
			if errors.Is(err, grouppay.ErrInvalidCredential) {
				c.JSON(http.StatusOK, gin.H{"valid": false})
				return
			}
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"valid": true, "ticket": newTicketView(ticket)})
	}
}
