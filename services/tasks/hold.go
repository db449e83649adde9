package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rentalspot/models"

	"github.com/hibiken/asynq"
)

const (
	TypeHoldExpire = "hold:expire"
	TypeHoldSweep  = "hold:sweep"
)

// NewHoldExpiryTask builds the task that expires one hold at fireAt. The task id
// is derived from the booking so rescheduling the same hold is a no-op.
func NewHoldExpiryTask(payload models.HoldExpiryPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeHoldExpire, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(TypeHoldExpire + ":" + payload.BookingID),
		asynq.MaxRetry(5),
	}
	return task, opts, nil
}

// NewHoldSweepTask builds the periodic sweep task.
func NewHoldSweepTask() *asynq.Task {
	return asynq.NewTask(TypeHoldSweep, nil, asynq.MaxRetry(0), asynq.Timeout(10*time.Minute))
}

// Enqueuer is the subset of *asynq.Client used to schedule tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqHoldScheduler schedules per-hold expiry tasks on the asynq queue.
type AsynqHoldScheduler struct {
	Client Enqueuer
}

func (s *AsynqHoldScheduler) ScheduleHoldExpiry(ctx context.Context, bookingID string, at time.Time) error {
	task, opts, err := NewHoldExpiryTask(models.HoldExpiryPayload{BookingID: bookingID}, at)
	if err != nil {
		return err
	}
	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
