package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"driveshare/internal/events"
)

// EventAuditor writes every booking lifecycle event to the audit log.
type EventAuditor struct {
	logger zerolog.Logger
}

func NewEventAuditor(logger zerolog.Logger) *EventAuditor {
	return &EventAuditor{logger: logger.With().Str("component", "booking-audit").Logger()}
}

func (a *EventAuditor) Handle(_ context.Context, msg redis.XMessage) error {
	event, err := events.Decode(msg.Values)
	if err != nil {
		return fmt.Errorf("decode event %s: %w", msg.ID, err)
	}

	a.logger.Info().
		Str("message_id", msg.ID).
		Str("event", string(event.Type)).
		Str("booking_id", event.BookingID).
		Str("car_id", event.CarID).
		Str("renter_id", event.RenterID).
		Str("actor_id", event.ActorID).
		Str("from", string(event.From)).
		Str("to", string(event.To)).
		Time("occurred_at", event.OccurredAt).
		Msg("booking event")
	return nil
}
