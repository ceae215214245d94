package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	config "github.com/phillip/event-ticketing-go/config"
)

func Health(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": cfg.Store})
	}
}
