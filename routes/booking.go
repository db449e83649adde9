package routes

import (
	"rentalspot/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterBookingRoutes registers the guest-facing endpoints of the booking core.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	properties := r.Group("/api/properties")
	{
		properties.GET("/:id/quote", hb.QuoteHandler)
		properties.GET("/:id/availability", hb.CheckAvailabilityHandler)
	}

	bookings := r.Group("/api/bookings")
	{
		bookings.POST("", hb.CreateBookingHandler)
		bookings.GET("/:id", hb.GetBookingHandler)
		bookings.POST("/:id/hold", hb.PlaceHoldHandler)
		bookings.POST("/:id/payment-intent", hb.CreatePaymentIntentHandler)
	}
}
