package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	config "github.com/phillip/event-ticketing-go/config"
	ledger "github.com/phillip/event-ticketing-go/ledger"
	models "github.com/phillip/event-ticketing-go/models"
	utils "github.com/phillip/event-ticketing-go/utils"
)

// parseStartDate accepts RFC3339 and a few common layouts.
func parseStartDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	layouts := []string{"2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid start_date format, use RFC3339 or YYYY-MM-DD")
}

// ---------------- CREATE EVENT ----------------
func CreateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role != "admin" && role != "organizer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "only organizers can create events"})
			return
		}

		var input struct {
			Title     string `json:"title" binding:"required"`
			Location  string `json:"location"`
			StartDate string `json:"start_date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		start, err := parseStartDate(input.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		now := time.Now().UTC()
		event := models.Event{
			ID:          uuid.NewString(),
			OrganizerID: c.GetString("user_id"),
			Title:       strings.TrimSpace(input.Title),
			Location:    input.Location,
			StartDate:   start,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := cfg.Ledger.PutEvent(ctx, &event); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create event"})
			return
		}

		c.JSON(http.StatusCreated, event)
	}
}

// ---------------- GET EVENT ----------------
func GetEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		event, err := cfg.Ledger.GetEvent(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch event"})
			return
		}

		etag := utils.GenerateETag(event.ID, event.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", event.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, event)
	}
}

// ---------------- CREATE TIER ----------------
func CreateTier(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		requesterID := c.GetString("user_id")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		event, err := cfg.Ledger.GetEvent(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch event"})
			return
		}

		// --- Only the event's organizer or an admin can add tiers ---
		if role != "admin" && event.OrganizerID != requesterID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to add tiers to this event"})
			return
		}

		var input struct {
			Name        string          `json:"name" binding:"required"`
			Description string          `json:"description"`
			Price       decimal.Decimal `json:"price"`
			Quantity    int             `json:"quantity" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !input.Price.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be greater than 0"})
			return
		}

		now := time.Now().UTC()
		tier := models.TicketTier{
			ID:          uuid.NewString(),
			EventID:     event.ID,
			Name:        input.Name,
			Description: input.Description,
			Price:       input.Price.Round(2),
			Quantity:    input.Quantity,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := cfg.Ledger.PutTier(ctx, &tier); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create tier"})
			return
		}

		c.JSON(http.StatusCreated, tier)
	}
}

// ---------------- GET TIER ----------------
func GetTier(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		tier, err := cfg.Ledger.GetTier(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "tier not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch tier"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"tier":      tier,
			"available": tier.Available(),
		})
	}
}
