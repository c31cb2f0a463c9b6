package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"driveshare/internal/models"
)

// memoryStore serializes every creation transaction behind one mutex, which
// is the strongest isolation a serializable database can offer.
type memoryStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	bookings map[string]models.Booking
	cars     map[string]models.Car

	// failNext makes the next n transactions fail with ErrTransient.
	failNext int
	txCalls  int
	// stallNext makes the next n transactions block until their context ends.
	stallNext int
	// lostAcks makes the next n transactions commit and then report a timeout.
	lostAcks int
	// insertErrs are returned by successive InsertBooking calls.
	insertErrs []error

	carErr    error
	getErr    error
	updateErr error

	// beforeUpdate runs inside UpdateBookingStatus before the status check.
	beforeUpdate func()
}

func newMemoryStore(cars ...models.Car) *memoryStore {
	s := &memoryStore{
		bookings: make(map[string]models.Booking),
		cars:     make(map[string]models.Car),
	}
	for _, c := range cars {
		s.cars[c.ID] = c
	}
	return s
}

func (s *memoryStore) GetCar(_ context.Context, carID string) (models.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.carErr != nil {
		return models.Car{}, s.carErr
	}
	car, ok := s.cars[carID]
	if !ok {
		return models.Car{}, ErrRecordNotFound
	}
	return car, nil
}

type memoryTx struct {
	store   *memoryStore
	pending []models.Booking
}

func (t *memoryTx) FindBlockingBookings(ctx context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	return t.store.FindBlockingBookings(ctx, carID, statuses)
}

func (t *memoryTx) InsertBooking(_ context.Context, b models.Booking) (models.Booking, error) {
	t.store.mu.Lock()
	if len(t.store.insertErrs) > 0 {
		err := t.store.insertErrs[0]
		t.store.insertErrs = t.store.insertErrs[1:]
		t.store.mu.Unlock()
		return models.Booking{}, err
	}
	t.store.mu.Unlock()

	b.UpdatedAt = b.CreatedAt
	t.pending = append(t.pending, b)
	return b, nil
}

func (s *memoryStore) InSerializableTx(ctx context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.txCalls++
	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		return ErrTransient
	}
	stall := s.stallNext > 0
	if stall {
		s.stallNext--
	}
	s.mu.Unlock()

	if stall {
		<-ctx.Done()
		return ctx.Err()
	}

	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range tx.pending {
		s.bookings[b.ID] = b
	}
	if s.lostAcks > 0 {
		s.lostAcks--
		return context.DeadlineExceeded
	}
	return nil
}

func (s *memoryStore) FindBlockingBookings(_ context.Context, carID string, statuses []models.BookingStatus) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Booking
	for _, b := range s.bookings {
		if b.CarID != carID {
			continue
		}
		for _, st := range statuses {
			if b.Status == st {
				out = append(out, b)
				break
			}
		}
	}
	return out, nil
}

func (s *memoryStore) UpdateBookingStatus(_ context.Context, id string, expected []models.BookingStatus, next models.BookingStatus) (models.Booking, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return models.Booking{}, s.updateErr
	}
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, ErrRecordNotFound
	}
	for _, st := range expected {
		if b.Status == st {
			b.Status = next
			b.UpdatedAt = time.Now().UTC()
			s.bookings[id] = b
			return b, nil
		}
	}
	return models.Booking{}, ErrStatusMismatch
}

func (s *memoryStore) GetBooking(_ context.Context, id string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.getErr != nil {
		return models.Booking{}, s.getErr
	}
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, ErrRecordNotFound
	}
	return b, nil
}

func (s *memoryStore) ListBookingsForUser(_ context.Context, userID string, role models.UserRole, limit int) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Booking
	for _, b := range s.bookings {
		switch {
		case role == models.UserRoleAdmin,
			b.RenterID == userID,
			role == models.UserRoleOwner && s.cars[b.CarID].OwnerID == userID:
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ListEndedBookings(_ context.Context, status models.BookingStatus, cutoff time.Time, limit int) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Booking
	for _, b := range s.bookings {
		if b.Status == status && b.Range.End.Before(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.End.Before(out[j].Range.End) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) put(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
