package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rentalspot/config"
	"rentalspot/models"
	"rentalspot/services/tasks"
	"rentalspot/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HoldExpirer expires a single hold.
type HoldExpirer interface {
	ExpireHold(ctx context.Context, bookingID string) (bool, error)
}

// HoldSweeper expires every lapsed hold.
type HoldSweeper interface {
	Run(ctx context.Context) (*models.SweepReport, error)
}

// RedisOpt returns the asynq connection to the queue database.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewQueueClient returns a plain Redis client on the queue database, used for health checks.
func NewQueueClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
}

// NewServeMux routes hold tasks to their handlers.
func NewServeMux(bookings HoldExpirer, sweeper HoldSweeper, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeHoldExpire, handleHoldExpireTask(bookings, logger))
	mux.HandleFunc(tasks.TypeHoldSweep, handleHoldSweepTask(sweeper, logger))
	return mux
}

func handleHoldExpireTask(bookings HoldExpirer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.HoldExpiryPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil || p.BookingID == "" {
			logger.Error("invalid hold expiry payload", zap.ByteString("payload", task.Payload()), zap.Error(err))
			return fmt.Errorf("invalid hold expiry payload: %w", asynq.SkipRetry)
		}

		expired, err := bookings.ExpireHold(ctx, p.BookingID)
		switch {
		case utils.IsKind(err, utils.KindNotFound):
			logger.Warn("hold expiry for unknown booking", zap.String("bookingID", p.BookingID))
			return nil
		case err != nil:
			logger.Warn("hold expiry failed, will retry", zap.String("bookingID", p.BookingID), zap.Error(err))
			return err
		}
		if !expired {
			logger.Debug("hold no longer expirable", zap.String("bookingID", p.BookingID))
		}
		return nil
	}
}

func handleHoldSweepTask(sweeper HoldSweeper, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		report, err := sweeper.Run(ctx)
		if err != nil {
			logger.Error("scheduled hold sweep aborted", zap.Error(err))
			return err
		}
		if len(report.Failures) > 0 {
			logger.Warn("scheduled hold sweep left failures", zap.Int("failures", len(report.Failures)))
		}
		return nil
	}
}

// StartHoldWorker starts the asynq worker and the periodic sweep scheduler.
// The returned function stops both.
func StartHoldWorker(bookings HoldExpirer, sweeper HoldSweeper, logger *zap.Logger) (func(), error) {
	if err := waitForRedis(logger); err != nil {
		return nil, err
	}

	srv := asynq.NewServer(RedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: logger.Sugar(),
	})
	if err := srv.Start(NewServeMux(bookings, sweeper, logger)); err != nil {
		return nil, fmt.Errorf("failed to start hold worker: %w", err)
	}

	scheduler := asynq.NewScheduler(RedisOpt(), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logger.Sugar(),
	})
	entryID, err := scheduler.Register(config.AppConfig.SweepCron, tasks.NewHoldSweepTask())
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("invalid SWEEP_CRON %q: %w", config.AppConfig.SweepCron, err)
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("failed to start sweep scheduler: %w", err)
	}
	logger.Info("hold worker started", zap.String("sweepCron", config.AppConfig.SweepCron), zap.String("entryID", entryID))

	return func() {
		scheduler.Shutdown()
		srv.Shutdown()
		logger.Info("hold worker stopped")
	}, nil
}

// waitForRedis pings the queue database with linear backoff before the worker starts.
func waitForRedis(logger *zap.Logger) error {
	client := NewQueueClient()
	defer client.Close()

	const maxAttempts = 5
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return nil
		}
		logger.Warn("queue redis unreachable", zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
		if attempts < maxAttempts {
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}
	return fmt.Errorf("queue redis unreachable after %d attempts: %w", maxAttempts, err)
}
