package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const TypeCompleteTrips = "complete_trips"

// TripCompleter closes confirmed bookings whose trip has ended.
type TripCompleter interface {
	CompleteEndedTrips(ctx context.Context, batch int) (int, error)
}

type Processor struct {
	trips        TripCompleter
	defaultBatch int
	logger       zerolog.Logger
}

type TaskPayload struct {
	Type  string `json:"type"`
	Batch string `json:"batch"`
}

func NewProcessor(trips TripCompleter, defaultBatch int, logger zerolog.Logger) *Processor {
	return &Processor{
		trips:        trips,
		defaultBatch: defaultBatch,
		logger:       logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case TypeCompleteTrips:
		return p.handleCompleteTrips(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleCompleteTrips(ctx context.Context, payload TaskPayload) error {
	batch := p.defaultBatch
	if n, err := strconv.Atoi(payload.Batch); err == nil && n > 0 {
		batch = n
	}

	completed, err := p.trips.CompleteEndedTrips(ctx, batch)
	if err != nil {
		return fmt.Errorf("complete trips: %w", err)
	}

	p.logger.Info().Int("completed", completed).Int("batch", batch).Msg("trip completion sweep finished")
	return nil
}
