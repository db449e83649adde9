package handlers

import (
	"rentalspot/middleware"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	AdminToken    string
	TokenVerifier middleware.TokenVerifier
	CronSecret    string

	// Public endpoints
	QuoteHandler               gin.HandlerFunc
	CheckAvailabilityHandler   gin.HandlerFunc
	CreateBookingHandler       gin.HandlerFunc
	GetBookingHandler          gin.HandlerFunc
	PlaceHoldHandler           gin.HandlerFunc
	CreatePaymentIntentHandler gin.HandlerFunc
	StripeWebhookHandler       gin.HandlerFunc

	// Admin endpoints
	UpsertPropertyHandler      gin.HandlerFunc
	PublishCalendarHandler     gin.HandlerFunc
	GetCalendarHandler         gin.HandlerFunc
	CancelBookingHandler       gin.HandlerFunc
	ReleaseAvailabilityHandler gin.HandlerFunc
	ListBookingsHandler        gin.HandlerFunc

	// Cron endpoints
	ReleaseHoldsHandler gin.HandlerFunc

	// Operational endpoints
	HealthHandler  gin.HandlerFunc
	MetricsHandler gin.HandlerFunc
}
