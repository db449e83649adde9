package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	calendarRepo "rentalspot/database/repository/calendar"
	"rentalspot/models"
	"rentalspot/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// Stripe event types handled by HandlePaymentEvent.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// PaymentEvent is a verified payment provider event.
type PaymentEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	BookingID       string
	Amount          float64
	Currency        string
	FailureMessage  string
}

// PaymentGateway creates payment intents and verifies provider webhooks.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, b *models.Booking) (*models.PaymentIntentResponse, error)
	ParseWebhook(payload []byte, signature string) (*PaymentEvent, error)
}

// StripeGateway talks to Stripe with the package-level key set at startup.
type StripeGateway struct {
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeGateway(webhookSecret string, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{webhookSecret: webhookSecret, logger: logger}
}

// CreatePaymentIntent charges the booking total. The idempotency key is tied
// to the booking so repeated calls return the same intent.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, b *models.Booking) (*models.PaymentIntentResponse, error) {
	currency := utils.NormalizeCurrency(b.Pricing.Currency)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(utils.ToMinorUnits(b.Pricing.Total, currency)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description:  stripe.String(fmt.Sprintf("Stay %s to %s", b.CheckIn, b.CheckOut)),
		ReceiptEmail: stripe.String(b.Guest.Email),
	}
	params.Context = ctx
	params.SetIdempotencyKey("booking-" + b.ID)
	params.AddMetadata("bookingId", b.ID)
	params.AddMetadata("propertyId", b.PropertyID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &models.PaymentIntentResponse{
		BookingID:       b.ID,
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          utils.FromMinorUnits(pi.Amount, currency),
		Currency:        currency,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes payment intent events.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, utils.ValidationError("invalid webhook signature: %v", err)
	}
	evt := &PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(evt.Type, "payment_intent.") {
		return evt, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, utils.ValidationError("invalid payment intent payload: %v", err)
	}
	currency := utils.NormalizeCurrency(string(pi.Currency))
	evt.PaymentIntentID = pi.ID
	evt.BookingID = pi.Metadata["bookingId"]
	evt.Amount = utils.FromMinorUnits(pi.Amount, currency)
	evt.Currency = currency
	if pi.LastPaymentError != nil {
		evt.FailureMessage = pi.LastPaymentError.Msg
	}
	return evt, nil
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeCard:
			return utils.ValidationError("payment provider rejected the request: %s", stripeErr.Msg)
		case stripe.ErrorTypeAPI:
			return utils.TransientError("payment provider unavailable", err)
		}
		if stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode >= 500 {
			return utils.TransientError("payment provider unavailable", err)
		}
	}
	return fmt.Errorf("stripe request failed: %w", err)
}

// CreatePaymentIntent opens a payment for a pending or on-hold booking and records the intent id.
func (s *DefaultBookingService) CreatePaymentIntent(ctx context.Context, bookingID string) (*models.PaymentIntentResponse, error) {
	if s.Payments == nil {
		return nil, errors.New("payments are not configured")
	}
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusPending && b.Status != models.StatusOnHold {
		return nil, invalidTransition(b, models.StatusConfirmed)
	}
	if b.HoldExpired(s.Now()) {
		return nil, utils.NewAppError(utils.KindInvalidTransition, fmt.Sprintf("hold on booking %s has expired", b.ID), nil)
	}

	intent, err := s.Payments.CreatePaymentIntent(ctx, b)
	if err != nil {
		return nil, err
	}
	if b.PaymentIntentID == intent.PaymentIntentID {
		return intent, nil
	}

	err = s.Store.RunTransaction(ctx, func(ctx context.Context, tx calendarRepo.Tx) error {
		current, err := loadBooking(tx, bookingID)
		if err != nil {
			return err
		}
		now := s.Now().UTC()
		current.PaymentIntentID = intent.PaymentIntentID
		current.UpdatedAt = now
		current.AddNote(now, "payment intent "+intent.PaymentIntentID+" created")
		return tx.UpdateBooking(current)
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// HandlePaymentEvent applies a verified provider event. Events for unknown
// bookings are acknowledged and logged since redelivery cannot help them.
func (s *DefaultBookingService) HandlePaymentEvent(ctx context.Context, evt PaymentEvent) error {
	if evt.Type != EventPaymentSucceeded && evt.Type != EventPaymentFailed {
		s.Logger.Debug("ignoring payment event", zap.String("eventID", evt.ID), zap.String("type", evt.Type))
		return nil
	}

	b, err := s.findPaidBooking(ctx, evt)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			s.Logger.Warn("payment event for unknown booking",
				zap.String("eventID", evt.ID),
				zap.String("paymentIntentID", evt.PaymentIntentID),
				zap.String("bookingID", evt.BookingID))
			return nil
		}
		return err
	}

	switch evt.Type {
	case EventPaymentSucceeded:
		_, err = s.AttachPayment(ctx, b.ID, models.PaymentInfo{
			PaymentID: evt.PaymentIntentID,
			Provider:  "stripe",
			Amount:    evt.Amount,
			Currency:  evt.Currency,
			Status:    "succeeded",
		})
		if utils.IsKind(err, utils.KindInvalidTransition) {
			s.Logger.Error("payment received for a booking that cannot be confirmed; refund required",
				zap.String("bookingID", b.ID),
				zap.String("status", b.Status),
				zap.String("paymentIntentID", evt.PaymentIntentID))
			return nil
		}
		return err
	case EventPaymentFailed:
		// Holds keep their nights until expiry so the guest can retry the payment.
		if b.Status != models.StatusPending {
			s.Logger.Info("payment attempt failed", zap.String("bookingID", b.ID), zap.String("reason", evt.FailureMessage))
			return nil
		}
		_, err = s.CancelBooking(ctx, b.ID, "payment failed: "+evt.FailureMessage)
		return err
	}
	return nil
}

func (s *DefaultBookingService) findPaidBooking(ctx context.Context, evt PaymentEvent) (*models.Booking, error) {
	if evt.PaymentIntentID != "" {
		b, err := s.Store.FindBookingByPaymentIntent(ctx, evt.PaymentIntentID)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, calendarRepo.ErrNotFound) {
			return nil, err
		}
	}
	if evt.BookingID == "" {
		return nil, utils.NotFoundError("no booking for payment intent %s", evt.PaymentIntentID)
	}
	return s.GetBooking(ctx, evt.BookingID)
}
