package handlers

import (
	"io"
	"net/http"

	"rentalspot/services/booking"
	"rentalspot/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 65536

// PaymentHandler receives payment provider webhooks.
type PaymentHandler struct {
	Gateway  booking.PaymentGateway
	Bookings booking.BookingService
}

func NewPaymentHandler(gw booking.PaymentGateway, bs booking.BookingService) *PaymentHandler {
	return &PaymentHandler{Gateway: gw, Bookings: bs}
}

// StripeWebhook handles POST /api/webhooks/stripe. Non-2xx responses make
// Stripe redeliver, so only failures that a retry can fix return 5xx.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "failed to read webhook body", err.Error())
		return
	}
	evt, err := h.Gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	logger := getLogger(c).With(zap.String("eventID", evt.ID), zap.String("type", evt.Type))
	if err := h.Bookings.HandlePaymentEvent(c.Request.Context(), *evt); err != nil {
		logger.Error("payment event not applied", zap.Error(err))
		utils.RespondError(c, err)
		return
	}
	logger.Info("payment event applied", zap.String("bookingID", evt.BookingID))
	c.JSON(http.StatusOK, gin.H{"received": true})
}
