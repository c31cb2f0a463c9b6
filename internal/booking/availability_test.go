package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"driveshare/internal/models"
)

type finderFunc func(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error)

func (f finderFunc) FindBlockingBookings(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	return f(ctx, carID, statuses)
}

func staticFinder(bookings ...models.Booking) finderFunc {
	return func(_ context.Context, _ string, statuses []models.BookingStatus) ([]models.Booking, error) {
		if len(statuses) != 3 {
			return nil, errors.New("unexpected blocking set")
		}
		return bookings, nil
	}
}

func TestCheckAvailability_ClosedIntervals(t *testing.T) {
	existing := models.Booking{
		ID: "a", CarID: carX.ID, Status: models.BookingPending,
		Range: models.DateRange{Start: day(6, 1), End: day(6, 5)},
	}

	cases := []struct {
		name      string
		rng       models.DateRange
		available bool
	}{
		{"inside", models.DateRange{Start: day(6, 2), End: day(6, 3)}, false},
		{"covers", models.DateRange{Start: day(5, 20), End: day(6, 20)}, false},
		{"overlaps end", models.DateRange{Start: day(6, 4), End: day(6, 6)}, false},
		{"starts on end day", models.DateRange{Start: day(6, 5), End: day(6, 6)}, false},
		{"ends on start day", models.DateRange{Start: day(5, 28), End: day(6, 1)}, false},
		{"after", models.DateRange{Start: day(6, 6), End: day(6, 8)}, true},
		{"before", models.DateRange{Start: day(5, 20), End: day(5, 31)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			avail, err := CheckAvailability(context.Background(), staticFinder(existing), carX.ID, tc.rng, "")
			require.NoError(t, err)
			require.Equal(t, tc.available, avail.Available)
			if !tc.available {
				require.Equal(t, "a", avail.Conflict.ID)
			}
		})
	}
}

func TestCheckAvailability_IgnoresNonBlockingAndExcluded(t *testing.T) {
	rng := models.DateRange{Start: day(6, 1), End: day(6, 5)}
	bookings := []models.Booking{
		{ID: "cancelled", CarID: carX.ID, Status: models.BookingCancelled, Range: rng},
		{ID: "rejected", CarID: carX.ID, Status: models.BookingRejected, Range: rng},
		{ID: "completed", CarID: carX.ID, Status: models.BookingCompleted, Range: rng},
		{ID: "other-car", CarID: "car-y", Status: models.BookingConfirmed, Range: rng},
		{ID: "self", CarID: carX.ID, Status: models.BookingApproved, Range: rng},
	}

	avail, err := CheckAvailability(context.Background(), staticFinder(bookings...), carX.ID, rng, "self")
	require.NoError(t, err)
	require.True(t, avail.Available)

	avail, err = CheckAvailability(context.Background(), staticFinder(bookings...), carX.ID, rng, "")
	require.NoError(t, err)
	require.False(t, avail.Available)
	require.Equal(t, "self", avail.Conflict.ID)
}

func TestCheckAvailability_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	finder := finderFunc(func(context.Context, string, []models.BookingStatus) ([]models.Booking, error) {
		return nil, boom
	})
	_, err := CheckAvailability(context.Background(), finder, carX.ID, models.DateRange{Start: day(6, 1), End: day(6, 2)}, "")
	require.ErrorIs(t, err, boom)
}

func TestTotalPrice(t *testing.T) {
	require.Equal(t, 200.0, TotalPrice(50, models.DateRange{Start: day(6, 1), End: day(6, 5)}))
	// A partial day is charged as a whole day.
	partial := models.DateRange{Start: day(6, 1), End: day(6, 2).Add(3 * time.Hour)}
	require.Equal(t, 2, partial.Days())
	require.Equal(t, 79.98, TotalPrice(39.99, partial))
}
