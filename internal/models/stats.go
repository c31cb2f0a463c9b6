package models

type PlatformStats struct {
	Users    int64
	Cars     int64
	Bookings int64
	// Revenue sums confirmed and completed bookings.
	Revenue float64
}
