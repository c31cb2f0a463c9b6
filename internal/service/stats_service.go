package service

import (
	"context"

	"driveshare/internal/models"
)

type StatsStore interface {
	Snapshot(ctx context.Context) (models.PlatformStats, error)
}

// StatsService reports platform totals for the admin dashboard.
type StatsService struct {
	store StatsStore
}

func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

func (s *StatsService) Snapshot(ctx context.Context) (models.PlatformStats, error) {
	return s.store.Snapshot(ctx)
}
