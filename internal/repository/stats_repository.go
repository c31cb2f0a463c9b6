package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"driveshare/internal/models"
)

type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func (r *StatsRepository) Snapshot(ctx context.Context) (models.PlatformStats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM cars),
			(SELECT COUNT(*) FROM bookings),
			(SELECT COALESCE(SUM(total_price), 0)::float8
			   FROM bookings
			  WHERE status IN ('CONFIRMED', 'COMPLETED'))
	`
	var stats models.PlatformStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Users,
		&stats.Cars,
		&stats.Bookings,
		&stats.Revenue,
	)
	return stats, err
}
