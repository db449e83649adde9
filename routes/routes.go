package routes

import (
	"net/http"
	"time"

	"rentalspot/handlers"
	"rentalspot/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterWebhookRoutes registers payment provider callbacks. They carry their
// own signature and sit outside the admin and cron guards.
func RegisterWebhookRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/api/webhooks/stripe", hb.StripeWebhookHandler)
}

// RegisterAdminRoutes sets up endpoints for admin operations.
func RegisterAdminRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.Use(middleware.AdminAuthMiddleware(hb.AdminToken, hb.TokenVerifier))
		adminGroup.PUT("/properties/:id", hb.UpsertPropertyHandler)
		adminGroup.GET("/properties/:id/bookings", hb.ListBookingsHandler)
		adminGroup.PUT("/calendars/:propertyId/:yearMonth", hb.PublishCalendarHandler)
		adminGroup.GET("/calendars/:propertyId/:yearMonth", hb.GetCalendarHandler)
		adminGroup.POST("/bookings/:id/cancel", hb.CancelBookingHandler)
		adminGroup.POST("/availability/release", hb.ReleaseAvailabilityHandler)
	}
}

// RegisterCronRoutes registers scheduler-triggered jobs guarded by CRON_SECRET.
func RegisterCronRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	cronGroup := r.Group("/api/cron")
	{
		cronGroup.Use(middleware.CronSecretMiddleware(hb.CronSecret))
		cronGroup.POST("/release-holds", hb.ReleaseHoldsHandler)
	}
}

// RegisterHealthRoute registers the health-check and metrics endpoints.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
	r.GET("/metrics", hb.MetricsHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Idempotency-Key", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
	})

	RegisterBookingRoutes(r, hb)
	RegisterWebhookRoutes(r, hb)
	RegisterAdminRoutes(r, hb)
	RegisterCronRoutes(r, hb)
	RegisterHealthRoute(r, hb)
}
