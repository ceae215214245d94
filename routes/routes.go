package routes

import (
	"github.com/gin-gonic/gin"
	config "github.com/phillip/event-ticketing-go/config"
	controllers "github.com/phillip/event-ticketing-go/controllers"
	"github.com/phillip/event-ticketing-go/metrics"
	middleware "github.com/phillip/event-ticketing-go/middleware"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	// public
	r.GET("/healthz", controllers.Health(cfg))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/events/:id", controllers.GetEvent(cfg))
	r.GET("/tiers/:id", controllers.GetTier(cfg))

	// payment provider callbacks, authenticated by signature
	r.POST("/webhooks/payments", controllers.PaymentWebhook(cfg))

	// protected
	auth := middleware.AuthMiddleware(cfg)

	events := r.Group("/events")
	events.Use(auth)
	{
		events.POST("", controllers.CreateEvent(cfg))
		events.POST("/:id/tiers", controllers.CreateTier(cfg))
	}

	pools := r.Group("/pools")
	pools.Use(auth)
	{
		pools.POST("", controllers.CreatePool(cfg))
		pools.GET("/:id", controllers.GetPool(cfg))
		pools.POST("/:id/contributions", controllers.Contribute(cfg))
		pools.POST("/:id/invitations", controllers.Invite(cfg))
		pools.POST("/:id/cancel", controllers.CancelPool(cfg))
	}

	tickets := r.Group("/tickets")
	tickets.Use(auth)
	{
		tickets.GET("/mine", controllers.ListMyTickets(cfg))
		tickets.POST("/verify", controllers.VerifyTicket(cfg))
	}
}
