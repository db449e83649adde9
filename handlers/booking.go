package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"rentalspot/models"
	"rentalspot/services/booking"
	"rentalspot/services/pricing"
	"rentalspot/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AvailabilityChecker answers availability questions for a stay.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, propertyID, checkIn, checkOut string) (*models.AvailabilityResult, error)
}

// BookingHandler serves the guest-facing quote, availability and booking endpoints.
type BookingHandler struct {
	Pricing      pricing.PricingEngine
	Availability AvailabilityChecker
	Bookings     booking.BookingService
}

func NewBookingHandler(pe pricing.PricingEngine, ac AvailabilityChecker, bs booking.BookingService) *BookingHandler {
	return &BookingHandler{Pricing: pe, Availability: ac, Bookings: bs}
}

// QuoteResponse pairs a price quote with the current availability of the stay.
type QuoteResponse struct {
	Quote        *models.PriceQuote         `json:"quote"`
	Availability *models.AvailabilityResult `json:"availability"`
}

// Quote handles GET /api/properties/:id/quote?checkIn=&checkOut=&guests=.
func (h *BookingHandler) Quote(c *gin.Context) {
	propertyID := c.Param("id")
	checkIn, checkOut := c.Query("checkIn"), c.Query("checkOut")
	guests, err := strconv.Atoi(c.DefaultQuery("guests", "1"))
	if err != nil {
		utils.RespondError(c, utils.ValidationError("guests must be a whole number"))
		return
	}

	quote, err := h.Pricing.Quote(c.Request.Context(), propertyID, checkIn, checkOut, guests)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	avail, err := h.Availability.CheckAvailability(c.Request.Context(), propertyID, checkIn, checkOut)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, QuoteResponse{Quote: quote, Availability: avail})
}

// CheckAvailability handles GET /api/properties/:id/availability?checkIn=&checkOut=.
func (h *BookingHandler) CheckAvailability(c *gin.Context) {
	result, err := h.Availability.CheckAvailability(c.Request.Context(), c.Param("id"), c.Query("checkIn"), c.Query("checkOut"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateBooking handles POST /api/bookings. A repeated Idempotency-Key returns
// the booking created by the first request.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req booking.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))

	b, err := h.Bookings.CreateBooking(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	getLogger(c).Info("booking request served", zap.String("bookingID", b.ID), zap.String("status", b.Status))
	c.JSON(http.StatusCreated, b)
}

// GetBooking handles GET /api/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	b, err := h.Bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// PlaceHold handles POST /api/bookings/:id/hold.
func (h *BookingHandler) PlaceHold(c *gin.Context) {
	b, err := h.Bookings.PlaceHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CreatePaymentIntent handles POST /api/bookings/:id/payment-intent.
func (h *BookingHandler) CreatePaymentIntent(c *gin.Context) {
	intent, err := h.Bookings.CreatePaymentIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}
