package sweeper

import (
	"context"
	"sync"
	"time"

	calendarRepo "rentalspot/database/repository/calendar"
	"rentalspot/models"
	"rentalspot/utils"

	"go.uber.org/zap"
)

// HoldExpirer expires one hold; it reports false when the booking no longer
// qualifies.
type HoldExpirer interface {
	ExpireHold(ctx context.Context, bookingID string) (bool, error)
}

// Sweeper cancels on-hold bookings whose hold has lapsed. Each booking is
// expired in its own transaction, so one failure never blocks the rest and
// concurrent runs cannot double-release a night.
type Sweeper struct {
	Store     calendarRepo.Store
	Bookings  HoldExpirer
	Logger    *zap.Logger
	BatchSize int
	Now       func() time.Time

	running sync.Mutex
}

func NewSweeper(store calendarRepo.Store, bookings HoldExpirer, logger *zap.Logger, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{Store: store, Bookings: bookings, Logger: logger, BatchSize: batchSize, Now: time.Now}
}

// Run processes every hold expired as of the start of the run.
func (s *Sweeper) Run(ctx context.Context) (*models.SweepReport, error) {
	s.running.Lock()
	defer s.running.Unlock()

	now := s.Now().UTC()
	report := &models.SweepReport{StartedAt: now, Failures: []models.SweepFailure{}}
	seen := make(map[string]bool)
	stuck := 0 // seen bookings that may still match the query

	for {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = s.Now().UTC()
			return report, err
		}
		limit := s.BatchSize + stuck
		var page []models.Booking
		err := utils.RetryRead(ctx, 3, func() error {
			var readErr error
			page, readErr = s.Store.ListExpiredHolds(ctx, now, limit)
			return readErr
		})
		if err != nil {
			report.FinishedAt = s.Now().UTC()
			s.Logger.Error("hold sweep aborted", zap.Error(err), zap.Int("processed", report.Processed))
			return report, err
		}

		fresh := 0
		for _, b := range page {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			fresh++
			if !s.expire(ctx, b.ID, report) {
				stuck++
			}
		}
		// Failed and skipped bookings can reappear, so the next page is widened by their count.
		if fresh == 0 || len(page) < limit {
			break
		}
	}

	report.FinishedAt = s.Now().UTC()
	s.Logger.Info("hold sweep finished",
		zap.Int("processed", report.Processed),
		zap.Int("expired", report.Expired),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// expire reports whether the booking left the on-hold state.
func (s *Sweeper) expire(ctx context.Context, bookingID string, report *models.SweepReport) bool {
	report.Processed++
	expired, err := s.Bookings.ExpireHold(ctx, bookingID)
	switch {
	case err != nil:
		utils.SweepResults.WithLabelValues("failed").Inc()
		report.Failures = append(report.Failures, models.SweepFailure{BookingID: bookingID, Error: err.Error()})
		s.Logger.Warn("failed to expire hold", zap.String("bookingID", bookingID), zap.Error(err))
		return false
	case expired:
		utils.SweepResults.WithLabelValues("expired").Inc()
		report.Expired++
		return true
	default:
		utils.SweepResults.WithLabelValues("skipped").Inc()
		report.Skipped++
		return false
	}
}
