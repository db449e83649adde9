package booking

import (
	"context"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/models"
	"rentalspot/services/availability"
	"rentalspot/services/notification"
	"rentalspot/services/pricing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService owns every state change of a booking and of the nights it reserves.
type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	ListBookings(ctx context.Context, propertyID string) ([]models.Booking, error)
	ReleaseAvailability(ctx context.Context, req ReleaseRequest) (*ReleaseResult, error)
	PlaceHold(ctx context.Context, bookingID string) (*models.Booking, error)
	AttachPayment(ctx context.Context, bookingID string, payment models.PaymentInfo) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) (*models.Booking, error)
	ExpireHold(ctx context.Context, bookingID string) (bool, error)
	CreatePaymentIntent(ctx context.Context, bookingID string) (*models.PaymentIntentResponse, error)
	HandlePaymentEvent(ctx context.Context, evt PaymentEvent) error
}

// HoldScheduler arranges for ExpireHold to run once a hold lapses.
type HoldScheduler interface {
	ScheduleHoldExpiry(ctx context.Context, bookingID string, at time.Time) error
}

// CreateBookingRequest is the input of CreateBooking. Status is pending when empty.
type CreateBookingRequest struct {
	PropertyID     string           `json:"propertyId"`
	CheckIn        string           `json:"checkIn"`
	CheckOut       string           `json:"checkOut"`
	Guests         int              `json:"guests"`
	Guest          models.GuestInfo `json:"guest"`
	Status         string           `json:"status"`
	Notes          string           `json:"notes"`
	IdempotencyKey string           `json:"-"`
}

// ReleaseRequest frees nights. With HoldID set only nights owned or held by that
// booking are released; an empty HoldID releases every night in the range.
type ReleaseRequest struct {
	PropertyID string `json:"propertyId"`
	CheckIn    string `json:"checkIn"`
	CheckOut   string `json:"checkOut"`
	HoldID     string `json:"holdId"`
}

// ReleaseResult lists which nights were released and which were left untouched.
type ReleaseResult struct {
	Released []string `json:"released"`
	Skipped  []string `json:"skipped"`
}

// DefaultBookingService implements BookingService on a transactional Store.
type DefaultBookingService struct {
	Store        calendarRepo.Store
	Properties   propertyRepo.PropertyRepository
	Pricing      pricing.PricingEngine
	Availability *availability.Checker
	Payments     PaymentGateway
	Notifier     notification.NotificationService
	Holds        HoldScheduler
	Logger       *zap.Logger
	DefaultHold  time.Duration
	Now          func() time.Time
	NewID        func() string
}

func NewBookingService(
	store calendarRepo.Store,
	properties propertyRepo.PropertyRepository,
	pricingEngine pricing.PricingEngine,
	checker *availability.Checker,
	logger *zap.Logger,
	defaultHold time.Duration,
) *DefaultBookingService {
	return &DefaultBookingService{
		Store:        store,
		Properties:   properties,
		Pricing:      pricingEngine,
		Availability: checker,
		Notifier:     notification.NoopNotificationService{},
		Logger:       logger,
		DefaultHold:  defaultHold,
		Now:          time.Now,
		NewID:        func() string { return uuid.New().String() },
	}
}
