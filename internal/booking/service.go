package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"driveshare/internal/ids"
	"driveshare/internal/models"
)

type Options struct {
	// MaxAttempts bounds retries of transient storage failures.
	MaxAttempts  int
	RetryBackoff time.Duration
	// OpTimeout is applied to every storage round trip.
	OpTimeout time.Duration
	ListLimit int
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 25 * time.Millisecond
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 5 * time.Second
	}
	if o.ListLimit <= 0 {
		o.ListLimit = 200
	}
	return o
}

type Service struct {
	store  Store
	cars   CarCatalog
	events Publisher
	opts   Options
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, cars CarCatalog, events Publisher, opts Options, log zerolog.Logger) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	return &Service{
		store:  store,
		cars:   cars,
		events: events,
		opts:   opts.withDefaults(),
		log:    log,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for date validation.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type CreateInput struct {
	CarID string
	Start time.Time
	End   time.Time
}

func (s *Service) CreateBooking(ctx context.Context, p Principal, input CreateInput) (models.Booking, error) {
	if err := CanCreateBooking(p); err != nil {
		return models.Booking{}, err
	}

	car, err := s.getCar(ctx, input.CarID)
	if err != nil {
		if errors.Is(err, errRetriesExhausted) {
			return models.Booking{}, availabilityError(nil, err)
		}
		return models.Booking{}, err
	}
	if car.ApprovalStatus != models.CarApproved {
		return models.Booking{}, validationError("car %s is not available for booking", car.ID)
	}

	rng := models.DateRange{Start: input.Start.UTC(), End: input.End.UTC()}
	if err := validateRange(rng, s.now()); err != nil {
		return models.Booking{}, err
	}

	candidate := models.Booking{
		ID:         ids.New(),
		CarID:      car.ID,
		RenterID:   p.UserID,
		Range:      rng,
		TotalPrice: TotalPrice(car.PricePerDay, rng),
		Status:     models.BookingPending,
		CreatedAt:  s.now().UTC(),
	}

	var created models.Booking
	err = s.withRetry(ctx, "create booking", func(ctx context.Context) error {
		return s.store.InSerializableTx(ctx, func(tx Tx) error {
			avail, err := CheckAvailability(ctx, tx, candidate.CarID, candidate.Range, "")
			if err != nil {
				return err
			}
			if !avail.Available {
				// An earlier attempt committed but its acknowledgement was lost.
				if avail.Conflict.ID == candidate.ID {
					created = *avail.Conflict
					return nil
				}
				return availabilityError(avail.Conflict, nil)
			}
			created, err = tx.InsertBooking(ctx, candidate)
			return err
		})
	})
	if err != nil {
		switch {
		case CodeOf(err) != "":
			return models.Booking{}, err
		case errors.Is(err, ErrRangeTaken), errors.Is(err, errRetriesExhausted):
			return models.Booking{}, availabilityError(nil, err)
		default:
			return models.Booking{}, fmt.Errorf("create booking: %w", err)
		}
	}

	s.log.Info().
		Str("booking_id", created.ID).
		Str("car_id", created.CarID).
		Str("renter_id", created.RenterID).
		Msg("booking created")

	s.publish(ctx, Event{
		Type:      EventCreated,
		BookingID: created.ID,
		CarID:     created.CarID,
		RenterID:  created.RenterID,
		ActorID:   p.UserID,
		To:        created.Status,
	})

	return created, nil
}

func (s *Service) GetBooking(ctx context.Context, p Principal, id string) (models.Booking, error) {
	b, car, err := s.loadWithCar(ctx, id)
	if err != nil {
		if errors.Is(err, errRetriesExhausted) {
			return models.Booking{}, concurrencyError(id, err)
		}
		return models.Booking{}, err
	}
	if err := CanActOnBooking(p, b, car, ActionView); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

func (s *Service) ListMyBookings(ctx context.Context, p Principal) ([]models.Booking, error) {
	var out []models.Booking
	err := s.withRetry(ctx, "list bookings", func(ctx context.Context) error {
		var err error
		out, err = s.store.ListBookingsForUser(ctx, p.UserID, p.Role, s.opts.ListLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}

func (s *Service) ApproveBooking(ctx context.Context, p Principal, id string) (models.Booking, error) {
	return s.transition(ctx, p, id, ActionApprove)
}

func (s *Service) RejectBooking(ctx context.Context, p Principal, id string) (models.Booking, error) {
	return s.transition(ctx, p, id, ActionReject)
}

func (s *Service) CancelBooking(ctx context.Context, p Principal, id string) (models.Booking, error) {
	return s.transition(ctx, p, id, ActionCancel)
}

// ConfirmBooking records a settled payment.
func (s *Service) ConfirmBooking(ctx context.Context, p Principal, id string) (models.Booking, error) {
	return s.transition(ctx, p, id, ActionConfirm)
}

// CompleteBooking closes a trip that has ended.
func (s *Service) CompleteBooking(ctx context.Context, p Principal, id string) (models.Booking, error) {
	return s.transition(ctx, p, id, ActionComplete)
}

// CheckAvailability answers a read-only availability query for a car.
func (s *Service) CheckAvailability(ctx context.Context, carID string, start, end time.Time) (Availability, error) {
	car, err := s.getCar(ctx, carID)
	if err != nil {
		return Availability{}, err
	}
	// Unlisted cars are hidden from the public catalogue.
	if car.ApprovalStatus != models.CarApproved {
		return Availability{}, notFoundError("car", carID)
	}
	rng := models.DateRange{Start: start.UTC(), End: end.UTC()}
	if !rng.End.After(rng.Start) {
		return Availability{}, validationError("end date must be after start date")
	}

	var avail Availability
	err = s.withRetry(ctx, "check availability", func(ctx context.Context) error {
		var err error
		avail, err = CheckAvailability(ctx, s.store, car.ID, rng, "")
		return err
	})
	if err != nil {
		return Availability{}, fmt.Errorf("check availability: %w", err)
	}
	return avail, nil
}

// CompleteEndedTrips moves confirmed bookings whose range ended before now
// to COMPLETED. Bookings that lose a race are skipped.
func (s *Service) CompleteEndedTrips(ctx context.Context, batch int) (int, error) {
	var ended []models.Booking
	err := s.withRetry(ctx, "list ended bookings", func(ctx context.Context) error {
		var err error
		ended, err = s.store.ListEndedBookings(ctx, models.BookingConfirmed, s.now().UTC(), batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list ended bookings: %w", err)
	}

	completed := 0
	for _, b := range ended {
		if _, err := s.CompleteBooking(ctx, SystemPrincipal, b.ID); err != nil {
			switch CodeOf(err) {
			case CodeConcurrencyConflict, CodeInvalidTransition, CodeNotFound:
				s.log.Debug().Err(err).Str("booking_id", b.ID).Msg("skip completion")
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}

func (s *Service) transition(ctx context.Context, p Principal, id string, action Action) (models.Booking, error) {
	b, car, err := s.loadWithCar(ctx, id)
	if err != nil {
		if errors.Is(err, errRetriesExhausted) {
			return models.Booking{}, concurrencyError(id, err)
		}
		return models.Booking{}, err
	}
	if err := CanActOnBooking(p, b, car, action); err != nil {
		return models.Booking{}, err
	}

	next, err := NextStatus(b.Status, action)
	if err != nil {
		return models.Booking{}, err
	}

	var updated models.Booking
	err = s.withRetry(ctx, string(action)+" booking", func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateBookingStatus(ctx, b.ID, []models.BookingStatus{b.Status}, next)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			return models.Booking{}, notFoundError("booking", id)
		case errors.Is(err, ErrStatusMismatch), errors.Is(err, errRetriesExhausted):
			return models.Booking{}, concurrencyError(id, err)
		default:
			return models.Booking{}, fmt.Errorf("%s booking: %w", action, err)
		}
	}

	s.log.Info().
		Str("booking_id", updated.ID).
		Str("car_id", updated.CarID).
		Str("from", string(b.Status)).
		Str("to", string(updated.Status)).
		Str("actor_id", p.UserID).
		Msg("booking transitioned")

	s.publish(ctx, Event{
		Type:      transitions[action].event,
		BookingID: updated.ID,
		CarID:     updated.CarID,
		RenterID:  updated.RenterID,
		ActorID:   p.UserID,
		From:      b.Status,
		To:        updated.Status,
	})

	return updated, nil
}

func (s *Service) loadWithCar(ctx context.Context, id string) (models.Booking, models.Car, error) {
	var b models.Booking
	err := s.withRetry(ctx, "get booking", func(ctx context.Context) error {
		var err error
		b, err = s.store.GetBooking(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return models.Booking{}, models.Car{}, notFoundError("booking", id)
		}
		return models.Booking{}, models.Car{}, fmt.Errorf("get booking: %w", err)
	}

	car, err := s.getCar(ctx, b.CarID)
	if err != nil {
		return models.Booking{}, models.Car{}, err
	}
	return b, car, nil
}

func (s *Service) getCar(ctx context.Context, carID string) (models.Car, error) {
	if carID == "" {
		return models.Car{}, validationError("car id is required")
	}
	var car models.Car
	err := s.withRetry(ctx, "get car", func(ctx context.Context) error {
		var err error
		car, err = s.cars.GetCar(ctx, carID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return models.Car{}, notFoundError("car", carID)
		}
		return models.Car{}, fmt.Errorf("get car: %w", err)
	}
	return car, nil
}

func (s *Service) publish(ctx context.Context, event Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("booking_id", event.BookingID).
			Str("event", string(event.Type)).
			Msg("publish booking event failed")
	}
}

var errRetriesExhausted = errors.New("retries exhausted")

// withRetry runs op with a per-attempt timeout, retrying transient failures
// with linear backoff.
func (s *Service) withRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		err := op(opCtx)
		cancel()

		if err == nil || !isTransient(ctx, err) {
			return err
		}
		if attempt >= s.opts.MaxAttempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", name, errRetriesExhausted, attempt, err)
		}

		s.log.Debug().Err(err).Str("op", name).Int("attempt", attempt).Msg("retrying transient failure")

		timer := time.NewTimer(time.Duration(attempt) * s.opts.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func isTransient(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

func validateRange(rng models.DateRange, now time.Time) error {
	if rng.Start.IsZero() || rng.End.IsZero() {
		return validationError("start and end dates are required")
	}
	if rng.Start.Before(now) {
		return validationError("start date cannot be in the past")
	}
	if !rng.End.After(rng.Start) {
		return validationError("end date must be after start date")
	}
	return nil
}

// TotalPrice charges pricePerDay for every started day of rng.
func TotalPrice(pricePerDay float64, rng models.DateRange) float64 {
	return math.Round(pricePerDay*float64(rng.Days())*100) / 100
}
