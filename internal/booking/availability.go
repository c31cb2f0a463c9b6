package booking

import (
	"context"
	"fmt"

	"driveshare/internal/models"
)

// BlockingFinder is satisfied by both Store and Tx so the same check runs
// inside and outside the creation transaction.
type BlockingFinder interface {
	FindBlockingBookings(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error)
}

type Availability struct {
	Available bool
	Conflict  *models.Booking
}

// CheckAvailability reports whether rng is free for carID. excludeID, when
// non-empty, ignores that booking. It never writes.
func CheckAvailability(ctx context.Context, finder BlockingFinder, carID string, rng models.DateRange, excludeID string) (Availability, error) {
	existing, err := finder.FindBlockingBookings(ctx, carID, models.BlockingStatuses)
	if err != nil {
		return Availability{}, fmt.Errorf("find blocking bookings: %w", err)
	}

	if conflict := findConflict(existing, carID, rng, excludeID); conflict != nil {
		return Availability{Available: false, Conflict: conflict}, nil
	}
	return Availability{Available: true}, nil
}

func findConflict(existing []models.Booking, carID string, rng models.DateRange, excludeID string) *models.Booking {
	for i := range existing {
		b := existing[i]
		if b.CarID != carID || !b.Status.IsBlocking() {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if b.Range.Overlaps(rng) {
			return &b
		}
	}
	return nil
}
