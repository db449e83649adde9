package notification

import (
	"context"
	"fmt"

	"rentalspot/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Booking event types pushed to staff devices.
const (
	EventConfirmed = "confirmed"
	EventCancelled = "cancelled"
	EventExpired   = "expired"
)

// NotificationService pushes booking lifecycle events.
type NotificationService interface {
	NotifyBookingEvent(ctx context.Context, evt models.BookingEvent) error
}

// MessageSender is the subset of *messaging.Client used here.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotificationService publishes to the FCM topic of the booking's property.
type FCMNotificationService struct {
	sender MessageSender
	logger *zap.Logger
}

func NewFCMNotificationService(sender MessageSender, logger *zap.Logger) (*FCMNotificationService, error) {
	if sender == nil {
		return nil, fmt.Errorf("notification service initialization error: messaging client is nil")
	}
	return &FCMNotificationService{sender: sender, logger: logger}, nil
}

// PropertyTopic is the FCM topic staff devices subscribe to for a property.
func PropertyTopic(propertyID string) string {
	return "property-" + propertyID
}

func (s *FCMNotificationService) NotifyBookingEvent(ctx context.Context, evt models.BookingEvent) error {
	msg := &messaging.Message{
		Topic: PropertyTopic(evt.PropertyID),
		Notification: &messaging.Notification{
			Title: title(evt.Type),
			Body:  fmt.Sprintf("%s to %s", evt.CheckIn, evt.CheckOut),
		},
		Data: map[string]string{
			"type":       evt.Type,
			"bookingId":  evt.BookingID,
			"propertyId": evt.PropertyID,
			"checkIn":    evt.CheckIn,
			"checkOut":   evt.CheckOut,
		},
	}
	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("NotifyBookingEvent: failed to send FCM message for booking %s: %w", evt.BookingID, err)
	}
	s.logger.Debug("booking event sent", zap.String("bookingID", evt.BookingID), zap.String("messageID", id))
	return nil
}

func title(eventType string) string {
	switch eventType {
	case EventConfirmed:
		return "Booking confirmed"
	case EventCancelled:
		return "Booking cancelled"
	case EventExpired:
		return "Hold expired"
	}
	return "Booking updated"
}

// NoopNotificationService drops every event.
type NoopNotificationService struct{}

func (NoopNotificationService) NotifyBookingEvent(context.Context, models.BookingEvent) error {
	return nil
}
