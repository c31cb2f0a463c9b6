package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driveshare/internal/booking"
	"driveshare/internal/models"
)

var ErrBookingNotFound = fmt.Errorf("booking: %w", booking.ErrRecordNotFound)

const bookingColumns = `
	id, car_id, renter_id, start_date, end_date, total_price, status, created_at, updated_at
`

// BookingRepository implements booking.Store on postgres.
type BookingRepository struct {
	pool *pgxpool.Pool
}

var _ booking.Store = (*BookingRepository)(nil)

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

type bookingTx struct {
	q querier
}

func (t bookingTx) FindBlockingBookings(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	return findBlocking(ctx, t.q, carID, statuses)
}

func (t bookingTx) InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	const query = `
		INSERT INTO bookings (
			id, car_id, renter_id, start_date, end_date, total_price, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $8
		)
		RETURNING ` + bookingColumns

	row := t.q.QueryRow(ctx, query,
		b.ID,
		b.CarID,
		b.RenterID,
		b.Range.Start,
		b.Range.End,
		b.TotalPrice,
		string(b.Status),
		b.CreatedAt,
	)
	inserted, err := scanBooking(row)
	if err != nil {
		return models.Booking{}, classify(err)
	}
	return inserted, nil
}

func (r *BookingRepository) InSerializableTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(bookingTx{q: tx})
	})
	return classify(err)
}

func (r *BookingRepository) FindBlockingBookings(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	return findBlocking(ctx, r.pool, carID, statuses)
}

func findBlocking(ctx context.Context, q querier, carID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	const query = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE car_id = $1 AND status = ANY($2::text[])
		ORDER BY start_date
	`
	rows, err := q.Query(ctx, query, carID, statusStrings(statuses))
	if err != nil {
		return nil, classify(err)
	}
	return collectBookings(rows)
}

func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id string, expected []models.BookingStatus, next models.BookingStatus) (models.Booking, error) {
	const query = `
		UPDATE bookings
		SET status = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($2::text[])
		RETURNING ` + bookingColumns

	row := r.pool.QueryRow(ctx, query, id, statusStrings(expected), string(next))
	updated, err := scanBooking(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Booking{}, classify(err)
	}

	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Booking{}, ErrBookingNotFound
		}
		return models.Booking{}, classify(err)
	}
	return models.Booking{}, fmt.Errorf("%w: booking %s is %s", booking.ErrStatusMismatch, id, current)
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Booking{}, ErrBookingNotFound
		}
		return models.Booking{}, classify(err)
	}
	return b, nil
}

func (r *BookingRepository) ListBookingsForUser(ctx context.Context, userID string, role models.UserRole, limit int) ([]models.Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)

	switch role {
	case models.UserRoleAdmin:
		const query = `
			SELECT ` + bookingColumns + `
			FROM bookings
			ORDER BY created_at DESC
			LIMIT $1
		`
		rows, err = r.pool.Query(ctx, query, limit)
	case models.UserRoleOwner:
		const query = `
			SELECT b.id, b.car_id, b.renter_id, b.start_date, b.end_date, b.total_price,
			       b.status, b.created_at, b.updated_at
			FROM bookings b
			JOIN cars c ON c.id = b.car_id
			WHERE b.renter_id = $1 OR c.owner_id = $1
			ORDER BY b.created_at DESC
			LIMIT $2
		`
		rows, err = r.pool.Query(ctx, query, userID, limit)
	default:
		const query = `
			SELECT ` + bookingColumns + `
			FROM bookings
			WHERE renter_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		rows, err = r.pool.Query(ctx, query, userID, limit)
	}
	if err != nil {
		return nil, classify(err)
	}
	return collectBookings(rows)
}

func (r *BookingRepository) ListEndedBookings(ctx context.Context, status models.BookingStatus, cutoff time.Time, limit int) ([]models.Booking, error) {
	const query = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND end_date < $2
		ORDER BY end_date
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, string(status), cutoff, limit)
	if err != nil {
		return nil, classify(err)
	}
	return collectBookings(rows)
}

func scanBooking(row pgx.Row) (models.Booking, error) {
	var (
		b      models.Booking
		status string
	)
	if err := row.Scan(
		&b.ID,
		&b.CarID,
		&b.RenterID,
		&b.Range.Start,
		&b.Range.End,
		&b.TotalPrice,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return models.Booking{}, err
	}
	b.Status = models.BookingStatus(status)
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]models.Booking, error) {
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, classify(rows.Err())
}

func statusStrings(statuses []models.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
