package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	config "github.com/phillip/event-ticketing-go/config"
	models "github.com/phillip/event-ticketing-go/models"
	utils "github.com/phillip/event-ticketing-go/utils"
)

const principalKey = "principal"

// AuthMiddleware requires a valid bearer token and stores the caller in the context.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		p, err := utils.ParseAccessToken(cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(principalKey, p)
		c.Set("user_id", p.ID)
		c.Set("role", role(p))
		c.Next()
	}
}

// CurrentPrincipal returns the caller set by AuthMiddleware.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

func role(p models.Principal) string {
	switch {
	case p.IsAdmin:
		return "admin"
	case p.IsOrganizer:
		return "organizer"
	default:
		return "user"
	}
}
