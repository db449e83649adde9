package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	propertyRepo "rentalspot/database/repository/property"
	"rentalspot/models"
	"rentalspot/services/availability"
	"rentalspot/services/notification"
	"rentalspot/utils"

	"go.uber.org/zap"
)

// ReleaseAvailability marks nights available again in both sources. Nights owned
// by a pending, on-hold or confirmed booking are skipped; those bookings free
// their nights through CancelBooking or hold expiry.
func (s *DefaultBookingService) ReleaseAvailability(ctx context.Context, req ReleaseRequest) (*ReleaseResult, error) {
	result, err := s.releaseAvailability(ctx, req)
	utils.BookingsTotal.WithLabelValues("release", utils.Outcome(err)).Inc()
	return result, err
}

func (s *DefaultBookingService) releaseAvailability(ctx context.Context, req ReleaseRequest) (*ReleaseResult, error) {
	if req.PropertyID == "" {
		return nil, utils.ValidationError("propertyId is required")
	}
	in, out, err := utils.ParseStayDates(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	nights := utils.Nights(in, out)
	keys := models.MonthKeys(req.PropertyID, nights)

	var result ReleaseResult
	err = s.Store.RunTransaction(ctx, func(ctx context.Context, tx calendarRepo.Tx) error {
		calendars, err := tx.GetCalendars(keys)
		if err != nil {
			return err
		}
		records, err := tx.GetAvailability(keys)
		if err != nil {
			return err
		}
		eval := s.Availability.Evaluate(req.PropertyID, nights, calendars, records)
		live, err := liveOwners(tx, eval)
		if err != nil {
			return err
		}
		changes, released, skipped := releasePlan(eval, req.HoldID, live)
		result = ReleaseResult{Released: released, Skipped: skipped}
		if len(changes) == 0 {
			return nil
		}
		return tx.ApplyNights(req.PropertyID, s.Now().UTC(), changes)
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("availability released",
		zap.String("propertyID", req.PropertyID),
		zap.String("holdID", req.HoldID),
		zap.Strings("released", result.Released),
		zap.Strings("skipped", result.Skipped))
	return &result, nil
}

// liveOwners loads the bookings that own or hold the evaluated nights and
// returns the ids of those that still reserve them. A missing booking is not live.
func liveOwners(tx calendarRepo.Tx, eval availability.Evaluation) (map[string]bool, error) {
	live := make(map[string]bool)
	seen := make(map[string]bool)
	for _, n := range eval.Nights {
		for _, id := range []string{n.Owner, n.HoldID} {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			b, err := tx.GetBooking(id)
			if errors.Is(err, calendarRepo.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			live[id] = b.ReservesNights()
		}
	}
	return live, nil
}

// releasePlan frees nights owned or held by ownerID, or every night when ownerID
// is empty. Nights of an owner listed in live are always skipped.
func releasePlan(eval availability.Evaluation, ownerID string, live map[string]bool) ([]calendarRepo.NightChange, []string, []string) {
	var changes []calendarRepo.NightChange
	released, skipped := []string{}, []string{}
	for _, n := range eval.Nights {
		date := utils.FormatDate(n.Date)
		if ownerID != "" && n.Owner != ownerID && n.HoldID != ownerID {
			skipped = append(skipped, date)
			continue
		}
		if live[n.Owner] || live[n.HoldID] {
			skipped = append(skipped, date)
			continue
		}
		changes = append(changes, calendarRepo.NightChange{
			Date:           n.Date,
			Op:             calendarRepo.OpRelease,
			UpdateCalendar: n.HasEntry,
		})
		released = append(released, date)
	}
	return changes, released, skipped
}

// AttachPayment confirms a pending or on-hold booking. Delivering the same
// payment twice is a no-op that returns the confirmed booking.
func (s *DefaultBookingService) AttachPayment(ctx context.Context, bookingID string, payment models.PaymentInfo) (*models.Booking, error) {
	b, err := s.attachPayment(ctx, bookingID, payment)
	utils.BookingsTotal.WithLabelValues("attach_payment", utils.Outcome(err)).Inc()
	return b, err
}

func (s *DefaultBookingService) attachPayment(ctx context.Context, bookingID string, payment models.PaymentInfo) (*models.Booking, error) {
	if bookingID == "" {
		return nil, utils.ValidationError("bookingId is required")
	}
	if payment.PaymentID == "" {
		return nil, utils.ValidationError("paymentId is required")
	}

	var result *models.Booking
	var changed bool
	err := s.Store.RunTransaction(ctx, func(ctx context.Context, tx calendarRepo.Tx) error {
		result, changed = nil, false
		b, err := loadBooking(tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == models.StatusConfirmed {
			if b.Payment != nil && b.Payment.PaymentID == payment.PaymentID {
				result = b
				return nil
			}
			return invalidTransition(b, models.StatusConfirmed)
		}
		if !models.CanTransition(b.Status, models.StatusConfirmed) {
			return invalidTransition(b, models.StatusConfirmed)
		}

		var changes []calendarRepo.NightChange
		if b.Status == models.StatusOnHold {
			nights, err := bookingNights(b)
			if err != nil {
				return err
			}
			records, err := tx.GetAvailability(models.MonthKeys(b.PropertyID, nights))
			if err != nil {
				return err
			}
			for _, night := range nights {
				rec := records[models.MonthKeyFor(b.PropertyID, night)]
				if rec != nil && rec.Holds[models.DayKey(night)] == b.ID {
					changes = append(changes, calendarRepo.NightChange{Date: night, Op: calendarRepo.OpClearHold})
				}
			}
		}

		now := s.Now().UTC()
		p := payment
		p.Currency = utils.NormalizeCurrency(p.Currency)
		if p.PaidAt.IsZero() {
			p.PaidAt = now
		}
		b.Status = models.StatusConfirmed
		b.HoldExpiresAt = nil
		b.Payment = &p
		b.UpdatedAt = now
		b.AddNote(now, fmt.Sprintf("payment %s confirmed", p.PaymentID))

		if err := tx.UpdateBooking(b); err != nil {
			return err
		}
		if len(changes) > 0 {
			if err := tx.ApplyNights(b.PropertyID, now, changes); err != nil {
				return err
			}
		}
		result, changed = b, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.Logger.Info("booking confirmed", zap.String("bookingID", result.ID), zap.String("paymentID", payment.PaymentID))
		s.notify(ctx, result, notification.EventConfirmed)
	}
	return result, nil
}

// PlaceHold moves a pending booking on hold so its nights stay reserved only
// until the property's hold window lapses. A booking already on hold is returned unchanged.
func (s *DefaultBookingService) PlaceHold(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, changed, err := s.placeHold(ctx, bookingID)
	utils.BookingsTotal.WithLabelValues("hold", utils.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	if changed {
		s.Logger.Info("booking placed on hold", zap.String("bookingID", b.ID), zap.Time("holdExpiresAt", *b.HoldExpiresAt))
		if s.Holds != nil {
			if err := s.Holds.ScheduleHoldExpiry(ctx, b.ID, *b.HoldExpiresAt); err != nil {
				s.Logger.Warn("failed to schedule hold expiry", zap.String("bookingID", b.ID), zap.Error(err))
			}
		}
	}
	return b, nil
}

func (s *DefaultBookingService) placeHold(ctx context.Context, bookingID string) (*models.Booking, bool, error) {
	if bookingID == "" {
		return nil, false, utils.ValidationError("bookingId is required")
	}
	var result *models.Booking
	var changed bool
	err := s.Store.RunTransaction(ctx, func(ctx context.Context, tx calendarRepo.Tx) error {
		result, changed = nil, false
		b, err := loadBooking(tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == models.StatusOnHold {
			result = b
			return nil
		}
		if !models.CanTransition(b.Status, models.StatusOnHold) {
			return invalidTransition(b, models.StatusOnHold)
		}
		nights, err := bookingNights(b)
		if err != nil {
			return err
		}
		records, err := tx.GetAvailability(models.MonthKeys(b.PropertyID, nights))
		if err != nil {
			return err
		}
		property, err := s.Properties.GetByID(ctx, b.PropertyID)
		if errors.Is(err, propertyRepo.ErrNotFound) {
			return utils.NotFoundError("property %s not found", b.PropertyID)
		}
		if err != nil {
			return fmt.Errorf("failed to load property %s: %w", b.PropertyID, err)
		}

		changes := make([]calendarRepo.NightChange, 0, len(nights))
		for _, night := range nights {
			rec := records[models.MonthKeyFor(b.PropertyID, night)]
			if rec == nil || rec.Bookings[models.DayKey(night)] != b.ID {
				return utils.NewAppError(utils.KindDataInconsistency, "booking does not own its nights",
					fmt.Errorf("booking %s does not own %s", b.ID, utils.FormatDate(night)))
			}
			changes = append(changes, calendarRepo.NightChange{
				Date:      night,
				Op:        calendarRepo.OpReserve,
				BookingID: b.ID,
				HoldID:    b.ID,
			})
		}

		now := s.Now().UTC()
		expires := now.Add(s.holdDuration(property))
		b.Status = models.StatusOnHold
		b.HoldExpiresAt = &expires
		b.UpdatedAt = now
		b.AddNote(now, "placed on hold until "+expires.Format(time.RFC3339))
		if err := tx.UpdateBooking(b); err != nil {
			return err
		}
		if err := tx.ApplyNights(b.PropertyID, now, changes); err != nil {
			return err
		}
		result, changed = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

// CancelBooking cancels a pending or on-hold booking and releases the nights it owns.
// Cancelling an already cancelled or expired booking returns it unchanged.
func (s *DefaultBookingService) CancelBooking(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	b, changed, err := s.cancel(ctx, bookingID, func(b *models.Booking, now time.Time) (bool, error) {
		if b.Status == models.StatusCancelled || b.Status == models.StatusExpired {
			return false, nil
		}
		if !models.CanTransition(b.Status, models.StatusCancelled) {
			return false, invalidTransition(b, models.StatusCancelled)
		}
		note := "cancelled"
		if reason != "" {
			note += ": " + reason
		}
		b.AddNote(now, note)
		return true, nil
	})
	utils.BookingsTotal.WithLabelValues("cancel", utils.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	if changed {
		s.Logger.Info("booking cancelled", zap.String("bookingID", b.ID), zap.String("reason", reason))
		s.notify(ctx, b, notification.EventCancelled)
	}
	return b, nil
}

// ExpireHold cancels an on-hold booking whose hold lapsed and frees its nights.
// It reports false without writing when the booking is no longer an expired hold,
// so a hold confirmed concurrently is left alone.
func (s *DefaultBookingService) ExpireHold(ctx context.Context, bookingID string) (bool, error) {
	b, changed, err := s.cancel(ctx, bookingID, func(b *models.Booking, now time.Time) (bool, error) {
		if !b.HoldExpired(now) {
			return false, nil
		}
		b.AddNote(now, fmt.Sprintf("hold expired at %s; nights released", b.HoldExpiresAt.UTC().Format(time.RFC3339)))
		return true, nil
	})
	utils.BookingsTotal.WithLabelValues("expire_hold", utils.Outcome(err)).Inc()
	if err != nil {
		return false, err
	}
	if changed {
		s.Logger.Info("hold expired", zap.String("bookingID", b.ID), zap.String("propertyID", b.PropertyID))
		s.notify(ctx, b, notification.EventExpired)
	}
	return changed, nil
}

// cancel moves a booking to cancelled when decide approves, releasing only the
// nights the booking owns or holds.
func (s *DefaultBookingService) cancel(ctx context.Context, bookingID string, decide func(b *models.Booking, now time.Time) (bool, error)) (*models.Booking, bool, error) {
	if bookingID == "" {
		return nil, false, utils.ValidationError("bookingId is required")
	}
	var result *models.Booking
	var changed bool
	err := s.Store.RunTransaction(ctx, func(ctx context.Context, tx calendarRepo.Tx) error {
		result, changed = nil, false
		b, err := loadBooking(tx, bookingID)
		if err != nil {
			return err
		}
		nights, err := bookingNights(b)
		if err != nil {
			return err
		}
		keys := models.MonthKeys(b.PropertyID, nights)
		calendars, err := tx.GetCalendars(keys)
		if err != nil {
			return err
		}
		records, err := tx.GetAvailability(keys)
		if err != nil {
			return err
		}

		now := s.Now().UTC()
		ok, err := decide(b, now)
		if err != nil {
			return err
		}
		result = b
		if !ok {
			return nil
		}

		changes, _, _ := releasePlan(s.Availability.Evaluate(b.PropertyID, nights, calendars, records), b.ID, nil)
		b.Status = models.StatusCancelled
		b.HoldExpiresAt = nil
		b.UpdatedAt = now
		if err := tx.UpdateBooking(b); err != nil {
			return err
		}
		if len(changes) > 0 {
			if err := tx.ApplyNights(b.PropertyID, now, changes); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

func loadBooking(tx calendarRepo.Tx, bookingID string) (*models.Booking, error) {
	b, err := tx.GetBooking(bookingID)
	if errors.Is(err, calendarRepo.ErrNotFound) {
		return nil, utils.NotFoundError("booking %s not found", bookingID)
	}
	return b, err
}

func bookingNights(b *models.Booking) ([]time.Time, error) {
	in, out, err := utils.ParseStayDates(b.CheckIn, b.CheckOut)
	if err != nil {
		return nil, utils.NewAppError(utils.KindDataInconsistency, "booking has invalid dates",
			fmt.Errorf("booking %s: %w", b.ID, err))
	}
	return utils.Nights(in, out), nil
}

func invalidTransition(b *models.Booking, to string) error {
	return utils.NewAppError(utils.KindInvalidTransition,
		fmt.Sprintf("booking %s is %s and cannot become %s", b.ID, b.Status, to), nil)
}
