package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/event-ticketing-go/config"
	grouppay "github.com/phillip/event-ticketing-go/grouppay"
	middleware "github.com/phillip/event-ticketing-go/middleware"
	utils "github.com/phillip/event-ticketing-go/utils"
)

// ---------------- CREATE ----------------
func CreatePool(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.CurrentPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input struct {
			EventID      string `json:"eventId" binding:"required"`
			TicketTierID string `json:"ticketTierId" binding:"required"`
			Quantity     int    `json:"quantity" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		pool, err := cfg.GroupPay.OpenPool(ctx, p, input.EventID, input.TicketTierID, input.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, pool)
	}
}

// ---------------- GET ----------------
func GetPool(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		view, err := cfg.GroupPay.GetPool(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		// --- ETag from the most recent change to the pool or its contributions ---
		latest := view.Pool.UpdatedAt
		for _, ctn := range view.Contributions {
			if ctn.CreatedAt.After(latest) {
				latest = ctn.CreatedAt
			}
		}
		etag := utils.GenerateETag(view.Pool.ID+"-"+view.SumCompleted.String()+"-"+statusDigest(view), latest)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, view)
	}
}

// statusDigest changes whenever any contribution settles.
func statusDigest(view *grouppay.PoolView) string {
	out := string(view.Pool.Status)
	for _, ctn := range view.Contributions {
		out += ":" + string(ctn.Status)
	}
	return out
}

// ---------------- CANCEL ----------------
func CancelPool(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.CurrentPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := cfg.GroupPay.CancelPool(ctx, c.Param("id"), p); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "pool cancelled"})
	}
}
