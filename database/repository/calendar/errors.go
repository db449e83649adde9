package calendarRepo

import (
	"context"
	"errors"
	"fmt"

	"rentalspot/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mongo server error codes that mean another transaction won the race.
const (
	mongoWriteConflict = 112
	mongoDuplicateKey  = 11000
	mongoNoSuchTxn     = 251
	mongoLockTimeout   = 24
	transientTxnLabel  = "TransientTransactionError"
	unknownCommitLabel = "UnknownTransactionCommitResult"
)

// ConflictOnCreate reports a booking id that is already taken.
func ConflictOnCreate(id string) error {
	return utils.ConflictError("booking already exists", fmt.Errorf("booking %s already exists", id))
}

// mapFirestoreError classifies Firestore/gRPC errors into the core's error kinds.
// AppErrors raised inside a transaction callback pass through untouched.
func mapFirestoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.TransientError(op+" timed out", err)
	}
	switch status.Code(err) {
	case codes.Aborted, codes.AlreadyExists:
		return utils.ConflictError("dates no longer available", fmt.Errorf("%s: %w", op, err))
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal:
		return utils.TransientError(op+" failed", err)
	case codes.NotFound:
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// mapMongoError classifies mongo driver errors into the core's error kinds.
func mapMongoError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorCode(mongoWriteConflict) || serverErr.HasErrorCode(mongoDuplicateKey) ||
			serverErr.HasErrorCode(mongoNoSuchTxn) || serverErr.HasErrorLabel(transientTxnLabel) {
			return utils.ConflictError("dates no longer available", fmt.Errorf("%s: %w", op, err))
		}
		if serverErr.HasErrorCode(mongoLockTimeout) || serverErr.HasErrorLabel(unknownCommitLabel) {
			return utils.TransientError(op+" failed", err)
		}
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return utils.TransientError(op+" failed", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
