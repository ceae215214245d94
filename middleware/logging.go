package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/phillip/event-ticketing-go/logger"
	"github.com/phillip/event-ticketing-go/metrics"
)

// RequestLogger logs every request and records its duration.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := metrics.NewTimer()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		timer.ObserveDurationVec(metrics.APIRequestDuration, c.Request.Method, route, strconv.Itoa(status))

		log := logger.WithComponent("http")
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", timer.Duration()).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
