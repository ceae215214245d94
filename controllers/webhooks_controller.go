package controllers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/event-ticketing-go/config"
	"github.com/phillip/event-ticketing-go/logger"
)

const maxWebhookBody = 256 << 10

// PaymentWebhook verifies a payment provider delivery and applies the
// settlement it carries. Anything but a 2xx makes the provider redeliver.
func PaymentWebhook(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithComponent("webhook")

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
			return
		}
		if len(payload) > maxWebhookBody {
			log.Error().Int64("content_length", c.Request.ContentLength).Int("limit", maxWebhookBody).Msg("Webhook body too large")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "webhook body too large"})
			return
		}

		settlement, err := cfg.Webhooks.ParseSettlement(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			log.Warn().Err(err).Msg("Rejected webhook delivery")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if settlement == nil {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()

		if err := cfg.GroupPay.HandleSettlement(ctx, *settlement); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
