package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"driveshare/internal/booking"
	"driveshare/internal/ids"
	"driveshare/internal/models"
)

// streamMaxLen caps the event stream; trimming is approximate.
const streamMaxLen = 100_000

// StreamPublisher appends booking events to a redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

var _ booking.Publisher = (*StreamPublisher)(nil)

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, event booking.Event) error {
	if p.client == nil {
		return nil
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: Encode(event),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Encode flattens event into stream field values.
func Encode(event booking.Event) map[string]any {
	return map[string]any{
		"eventId":    ids.New(),
		"type":       string(event.Type),
		"bookingId":  event.BookingID,
		"carId":      event.CarID,
		"renterId":   event.RenterID,
		"actorId":    event.ActorID,
		"from":       string(event.From),
		"to":         string(event.To),
		"occurredAt": event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

// Decode is the inverse of Encode for values read back from the stream.
func Decode(values map[string]any) (booking.Event, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	event := booking.Event{
		Type:      booking.EventType(str("type")),
		BookingID: str("bookingId"),
		CarID:     str("carId"),
		RenterID:  str("renterId"),
		ActorID:   str("actorId"),
		From:      models.BookingStatus(str("from")),
		To:        models.BookingStatus(str("to")),
	}
	if event.Type == "" || event.BookingID == "" {
		return booking.Event{}, fmt.Errorf("event missing type or booking id")
	}

	if raw := str("occurredAt"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return booking.Event{}, fmt.Errorf("parse occurredAt: %w", err)
		}
		event.OccurredAt = ts
	}
	return event, nil
}
