package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	config "github.com/phillip/event-ticketing-go/config"
	grouppay "github.com/phillip/event-ticketing-go/grouppay"
	middleware "github.com/phillip/event-ticketing-go/middleware"
)

// ---------------- CONTRIBUTE ----------------
func Contribute(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.CurrentPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		receipt, err := cfg.GroupPay.Contribute(ctx, grouppay.ContributeRequest{
			PoolID:           c.Param("id"),
			ContributorID:    p.ID,
			ContributorEmail: p.Email,
			Amount:           input.Amount,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, receipt)
	}
}

// ---------------- INVITE ----------------
func Invite(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.CurrentPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input struct {
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		receipt, err := cfg.GroupPay.Invite(ctx, c.Param("id"), p, input.Email)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, receipt)
	}
}
