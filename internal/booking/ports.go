package booking

import (
	"context"
	"time"

	"driveshare/internal/models"
)

// Principal is the authenticated caller as yielded by the identity service.
type Principal struct {
	UserID   string
	Role     models.UserRole
	Verified bool
}

// SystemPrincipal is used by background jobs driving external transitions.
var SystemPrincipal = Principal{UserID: "system", Role: models.UserRoleAdmin, Verified: true}

func (p Principal) IsAdmin() bool { return p.Role == models.UserRoleAdmin }

// CarCatalog resolves cars. It returns ErrRecordNotFound for unknown ids.
type CarCatalog interface {
	GetCar(ctx context.Context, carID string) (models.Car, error)
}

// Tx is the view of storage available inside a serializable creation
// transaction.
type Tx interface {
	FindBlockingBookings(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error)
	InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error)
}

type Store interface {
	// InSerializableTx runs fn in one serializable transaction. Serialization
	// failures surface as ErrTransient; an overlap caught by storage surfaces
	// as ErrRangeTaken.
	InSerializableTx(ctx context.Context, fn func(tx Tx) error) error

	FindBlockingBookings(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error)

	// UpdateBookingStatus sets next only when the stored status is one of
	// expected. It returns ErrStatusMismatch when the row exists with another
	// status and ErrRecordNotFound when it does not exist.
	UpdateBookingStatus(ctx context.Context, id string, expected []models.BookingStatus, next models.BookingStatus) (models.Booking, error)

	GetBooking(ctx context.Context, id string) (models.Booking, error)
	ListBookingsForUser(ctx context.Context, userID string, role models.UserRole, limit int) ([]models.Booking, error)

	// ListEndedBookings returns bookings in status whose range ended before
	// cutoff, oldest first.
	ListEndedBookings(ctx context.Context, status models.BookingStatus, cutoff time.Time, limit int) ([]models.Booking, error)
}

type EventType string

const (
	EventCreated   EventType = "booking.created"
	EventApproved  EventType = "booking.approved"
	EventRejected  EventType = "booking.rejected"
	EventCancelled EventType = "booking.cancelled"
	EventConfirmed EventType = "booking.confirmed"
	EventCompleted EventType = "booking.completed"
)

type Event struct {
	Type       EventType
	BookingID  string
	CarID      string
	RenterID   string
	ActorID    string
	From       models.BookingStatus
	To         models.BookingStatus
	OccurredAt time.Time
}

// Publisher receives committed lifecycle changes. Publishing is best effort;
// a failure never rolls back the booking change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
