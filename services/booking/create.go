package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	"rentalspot/models"
	"rentalspot/services/notification"
	"rentalspot/services/pricing"
	"rentalspot/utils"

	"go.uber.org/zap"
)

// CreateBooking prices the stay, then checks and reserves every night in one
// transaction. A request carrying an idempotency key already used for the
// property returns the original booking without writing.
func (s *DefaultBookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	b, err := s.createBooking(ctx, req)
	utils.BookingsTotal.WithLabelValues("create", utils.Outcome(err)).Inc()
	return b, err
}

func (s *DefaultBookingService) createBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	status, err := validateCreate(&req)
	if err != nil {
		return nil, err
	}
	in, out, err := utils.ParseStayDates(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	quote, err := s.Pricing.Quote(ctx, req.PropertyID, req.CheckIn, req.CheckOut, req.Guests)
	if err != nil {
		return nil, err
	}
	property, err := pricing.LoadProperty(ctx, s.Properties, req.PropertyID)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	booking := &models.Booking{
		ID:             s.NewID(),
		PropertyID:     req.PropertyID,
		CheckIn:        req.CheckIn,
		CheckOut:       req.CheckOut,
		Guests:         req.Guests,
		Guest:          req.Guest,
		Pricing:        quote.Breakdown,
		Status:         status,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	var holdID string
	if status == models.StatusOnHold {
		expires := now.Add(s.holdDuration(property))
		booking.HoldExpiresAt = &expires
		holdID = booking.ID
	}
	booking.AddNote(now, "created as "+status)
	if req.Notes != "" {
		booking.AddNote(now, req.Notes)
	}

	nights := utils.Nights(in, out)
	keys := models.MonthKeys(req.PropertyID, nights)

	var result *models.Booking
	err = s.Store.RunTransaction(ctx, func(ctx context.Context, tx calendarRepo.Tx) error {
		result = nil
		if req.IdempotencyKey != "" {
			existing, err := tx.FindBookingByIdempotencyKey(req.PropertyID, req.IdempotencyKey)
			if err == nil {
				result = existing
				return nil
			}
			if !errors.Is(err, calendarRepo.ErrNotFound) {
				return err
			}
		}

		calendars, err := tx.GetCalendars(keys)
		if err != nil {
			return err
		}
		records, err := tx.GetAvailability(keys)
		if err != nil {
			return err
		}
		eval := s.Availability.Evaluate(req.PropertyID, nights, calendars, records)
		if !eval.IsAvailable() {
			return utils.ConflictError("dates no longer available",
				fmt.Errorf("unavailable nights: %s", strings.Join(eval.UnavailableDates(), ", ")))
		}

		if err := tx.CreateBooking(booking); err != nil {
			return err
		}
		changes := make([]calendarRepo.NightChange, 0, len(eval.Nights))
		for _, n := range eval.Nights {
			changes = append(changes, calendarRepo.NightChange{
				Date:           n.Date,
				Op:             calendarRepo.OpReserve,
				BookingID:      booking.ID,
				HoldID:         holdID,
				UpdateCalendar: n.HasEntry,
			})
		}
		if err := tx.ApplyNights(req.PropertyID, now, changes); err != nil {
			return err
		}
		result = booking
		return nil
	})
	if err != nil {
		s.Logger.Warn("booking not created",
			zap.String("propertyID", req.PropertyID),
			zap.String("checkIn", req.CheckIn),
			zap.String("checkOut", req.CheckOut),
			zap.Error(err))
		return nil, err
	}
	if result != booking {
		s.Logger.Info("idempotent booking replay", zap.String("bookingID", result.ID), zap.String("propertyID", req.PropertyID))
		return result, nil
	}

	s.Logger.Info("booking created",
		zap.String("bookingID", booking.ID),
		zap.String("propertyID", booking.PropertyID),
		zap.String("status", booking.Status),
		zap.Float64("total", booking.Pricing.Total))

	switch booking.Status {
	case models.StatusOnHold:
		if s.Holds != nil {
			if err := s.Holds.ScheduleHoldExpiry(ctx, booking.ID, *booking.HoldExpiresAt); err != nil {
				// The periodic sweep still picks the hold up.
				s.Logger.Warn("failed to schedule hold expiry", zap.String("bookingID", booking.ID), zap.Error(err))
			}
		}
	case models.StatusConfirmed:
		s.notify(ctx, booking, notification.EventConfirmed)
	}
	return booking, nil
}

func validateCreate(req *CreateBookingRequest) (string, error) {
	req.PropertyID = strings.TrimSpace(req.PropertyID)
	if req.PropertyID == "" {
		return "", utils.ValidationError("propertyId is required")
	}
	req.Guest.FirstName = strings.TrimSpace(req.Guest.FirstName)
	req.Guest.LastName = strings.TrimSpace(req.Guest.LastName)
	req.Guest.Email = strings.TrimSpace(req.Guest.Email)
	if req.Guest.FirstName == "" || req.Guest.LastName == "" {
		return "", utils.ValidationError("guest first and last name are required")
	}
	if _, err := mail.ParseAddress(req.Guest.Email); err != nil {
		return "", utils.ValidationError("guest email %q is invalid", req.Guest.Email)
	}

	switch req.Status {
	case "":
		return models.StatusPending, nil
	case models.StatusPending, models.StatusOnHold, models.StatusConfirmed:
		return req.Status, nil
	}
	return "", utils.ValidationError("status must be one of %s, %s or %s",
		models.StatusPending, models.StatusOnHold, models.StatusConfirmed)
}

func (s *DefaultBookingService) holdDuration(p *models.Property) time.Duration {
	if p.HoldMinutes > 0 {
		return time.Duration(p.HoldMinutes) * time.Minute
	}
	if s.DefaultHold > 0 {
		return s.DefaultHold
	}
	return 30 * time.Minute
}

// notify never fails the caller; the booking is already committed.
func (s *DefaultBookingService) notify(ctx context.Context, b *models.Booking, eventType string) {
	if s.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.Notifier.NotifyBookingEvent(ctx, models.BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		CheckIn:    b.CheckIn,
		CheckOut:   b.CheckOut,
	})
	if err != nil {
		s.Logger.Warn("booking notification failed", zap.String("bookingID", b.ID), zap.String("event", eventType), zap.Error(err))
	}
}

// GetBooking reads a booking outside any transaction.
func (s *DefaultBookingService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := s.Store.GetBooking(ctx, bookingID)
	if errors.Is(err, calendarRepo.ErrNotFound) {
		return nil, utils.NotFoundError("booking %s not found", bookingID)
	}
	return b, err
}

func (s *DefaultBookingService) ListBookings(ctx context.Context, propertyID string) ([]models.Booking, error) {
	if propertyID == "" {
		return nil, utils.ValidationError("propertyId is required")
	}
	return s.Store.ListBookings(ctx, propertyID)
}
