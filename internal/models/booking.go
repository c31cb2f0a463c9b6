package models

import (
	"fmt"
	"math"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingApproved  BookingStatus = "APPROVED"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingRejected  BookingStatus = "REJECTED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// BlockingStatuses are the statuses that hold a car for their date range.
var BlockingStatuses = []BookingStatus{BookingPending, BookingApproved, BookingConfirmed}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	switch status {
	case BookingPending, BookingApproved, BookingConfirmed,
		BookingRejected, BookingCancelled, BookingCompleted:
		return status, nil
	}
	return "", fmt.Errorf("invalid booking status: %q", s)
}

func (s BookingStatus) IsBlocking() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingRejected || s == BookingCancelled || s == BookingCompleted
}

// DateRange is a closed interval: both Start and End are occupied.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two closed ranges share at least one instant.
// A range ending at D and another starting at D overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

// Days is the number of started 24h periods in the range.
func (r DateRange) Days() int {
	span := r.End.Sub(r.Start)
	if span <= 0 {
		return 0
	}
	return int(math.Ceil(span.Hours() / 24))
}

type Booking struct {
	ID         string
	CarID      string
	RenterID   string
	Range      DateRange
	TotalPrice float64
	Status     BookingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
