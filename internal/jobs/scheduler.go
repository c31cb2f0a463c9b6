package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"driveshare/internal/tasks"
)

// Scheduler enqueues periodic maintenance tasks for the worker.
type Scheduler struct {
	cron   *cron.Cron
	queue  *redis.Client
	stream string
	log    zerolog.Logger

	completionSchedule string
	completionBatch    int
}

func NewScheduler(queue *redis.Client, stream string, completionSchedule string, completionBatch int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:               cron.New(cron.WithSeconds()),
		queue:              queue,
		stream:             stream,
		log:                log,
		completionSchedule: completionSchedule,
		completionBatch:    completionBatch,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.completionSchedule, s.enqueueTripCompletion); err != nil {
		return fmt.Errorf("schedule trip completion %q: %w", s.completionSchedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueueTripCompletion() {
	err := s.enqueueTask(map[string]any{
		"type":  tasks.TypeCompleteTrips,
		"batch": strconv.Itoa(s.completionBatch),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue trip completion failed")
		return
	}
	s.log.Debug().Msg("trip completion enqueued")
}

func (s *Scheduler) enqueueTask(payload map[string]any) error {
	if s.queue == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: payload,
	}).Result()
	return err
}
