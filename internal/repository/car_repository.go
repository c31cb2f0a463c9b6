package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driveshare/internal/booking"
	"driveshare/internal/models"
)

var ErrCarNotFound = fmt.Errorf("car: %w", booking.ErrRecordNotFound)

const carColumns = `
	id, owner_id, make, model, year, location, price_per_day, approval_status, created_at, updated_at
`

type CarRepository struct {
	pool *pgxpool.Pool
}

var _ booking.CarCatalog = (*CarRepository)(nil)

func NewCarRepository(pool *pgxpool.Pool) *CarRepository {
	return &CarRepository{pool: pool}
}

func (r *CarRepository) Create(ctx context.Context, car models.Car) (models.Car, error) {
	const query = `
		INSERT INTO cars (
			id, owner_id, make, model, year, location, price_per_day, approval_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
		RETURNING ` + carColumns

	return scanCar(r.pool.QueryRow(ctx, query,
		car.ID,
		car.OwnerID,
		car.Make,
		car.Model,
		car.Year,
		car.Location,
		car.PricePerDay,
		string(car.ApprovalStatus),
	))
}

// GetCar implements booking.CarCatalog.
func (r *CarRepository) GetCar(ctx context.Context, id string) (models.Car, error) {
	const query = `SELECT ` + carColumns + ` FROM cars WHERE id = $1`

	car, err := scanCar(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Car{}, ErrCarNotFound
		}
		return models.Car{}, classify(err)
	}
	return car, nil
}

func (r *CarRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Car, error) {
	const query = `
		SELECT ` + carColumns + `
		FROM cars
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return collectCars(rows)
}

func (r *CarRepository) ListByApprovalStatus(ctx context.Context, status models.CarApprovalStatus, limit, offset int) ([]models.Car, error) {
	const query = `
		SELECT ` + carColumns + `
		FROM cars
		WHERE approval_status = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectCars(rows)
}

// ListApproved returns bookable cars matching filter, newest first.
func (r *CarRepository) ListApproved(ctx context.Context, filter models.CarFilter) ([]models.Car, error) {
	const query = `
		SELECT ` + carColumns + `
		FROM cars
		WHERE approval_status = 'APPROVED'
		  AND ($1::text = '' OR make ILIKE $1)
		  AND ($2::text = '' OR location ILIKE '%' || $2 || '%')
		  AND ($3::numeric = 0 OR price_per_day >= $3)
		  AND ($4::numeric = 0 OR price_per_day <= $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query,
		filter.Make,
		filter.Location,
		filter.MinPrice,
		filter.MaxPrice,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectCars(rows)
}

// Update rewrites the listing details. Approval status is left alone.
func (r *CarRepository) Update(ctx context.Context, car models.Car) (models.Car, error) {
	const query = `
		UPDATE cars
		SET make = $2,
		    model = $3,
		    year = $4,
		    location = $5,
		    price_per_day = $6,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + carColumns

	updated, err := scanCar(r.pool.QueryRow(ctx, query,
		car.ID,
		car.Make,
		car.Model,
		car.Year,
		car.Location,
		car.PricePerDay,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Car{}, ErrCarNotFound
		}
		return models.Car{}, err
	}
	return updated, nil
}

func (r *CarRepository) UpdateApprovalStatus(ctx context.Context, id string, status models.CarApprovalStatus) (models.Car, error) {
	const query = `
		UPDATE cars
		SET approval_status = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + carColumns

	car, err := scanCar(r.pool.QueryRow(ctx, query, id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Car{}, ErrCarNotFound
		}
		return models.Car{}, err
	}
	return car, nil
}

func scanCar(row pgx.Row) (models.Car, error) {
	var (
		car    models.Car
		status string
	)
	if err := row.Scan(
		&car.ID,
		&car.OwnerID,
		&car.Make,
		&car.Model,
		&car.Year,
		&car.Location,
		&car.PricePerDay,
		&status,
		&car.CreatedAt,
		&car.UpdatedAt,
	); err != nil {
		return models.Car{}, err
	}
	car.ApprovalStatus = models.CarApprovalStatus(status)
	return car, nil
}

func collectCars(rows pgx.Rows) ([]models.Car, error) {
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, car)
	}
	return cars, rows.Err()
}
