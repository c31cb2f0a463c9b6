package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"driveshare/internal/models"
)

var testNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func day(month time.Month, d int) time.Time {
	return time.Date(2025, month, d, 0, 0, 0, 0, time.UTC)
}

var (
	renter   = Principal{UserID: "renter-1", Role: models.UserRoleRenter, Verified: true}
	renter2  = Principal{UserID: "renter-2", Role: models.UserRoleRenter, Verified: true}
	owner    = Principal{UserID: "owner-1", Role: models.UserRoleOwner, Verified: true}
	admin    = Principal{UserID: "admin-1", Role: models.UserRoleAdmin}
	stranger = Principal{UserID: "stranger", Role: models.UserRoleRenter, Verified: true}

	carX = models.Car{ID: "car-x", OwnerID: owner.UserID, PricePerDay: 50, ApprovalStatus: models.CarApproved}
)

type fixture struct {
	svc    *Service
	store  *memoryStore
	events *recordingPublisher
}

func newFixture(t *testing.T, opts Options, cars ...models.Car) fixture {
	t.Helper()
	if len(cars) == 0 {
		cars = []models.Car{carX}
	}
	store := newMemoryStore(cars...)
	events := &recordingPublisher{}
	svc := NewService(store, store, events, opts, zerolog.Nop())
	svc.SetClock(func() time.Time { return testNow })
	return fixture{svc: svc, store: store, events: events}
}

func (f fixture) create(t *testing.T, p Principal, start, end time.Time) models.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), p, CreateInput{CarID: carX.ID, Start: start, End: end})
	require.NoError(t, err)
	return b
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, CodeOf(err), "error: %v", err)
}

func TestCreateBooking_Scenario(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	a, err := f.svc.CreateBooking(ctx, renter, CreateInput{CarID: carX.ID, Start: day(6, 1), End: day(6, 5)})
	require.NoError(t, err)
	require.Equal(t, models.BookingPending, a.Status)
	require.Equal(t, 200.0, a.TotalPrice)

	_, err = f.svc.CreateBooking(ctx, renter2, CreateInput{CarID: carX.ID, Start: day(6, 4), End: day(6, 6)})
	requireCode(t, err, CodeAvailabilityConflict)
	var typed *Error
	require.ErrorAs(t, err, &typed)
	require.NotNil(t, typed.Conflict)
	require.Equal(t, a.ID, typed.Conflict.ID)

	c, err := f.svc.CreateBooking(ctx, renter2, CreateInput{CarID: carX.ID, Start: day(6, 6), End: day(6, 8)})
	require.NoError(t, err)
	require.Equal(t, models.BookingPending, c.Status)
	require.Equal(t, 100.0, c.TotalPrice)
}

func TestCreateBooking_SameDayHandoverConflicts(t *testing.T) {
	f := newFixture(t, Options{})
	f.create(t, renter, day(6, 1), day(6, 5))

	_, err := f.svc.CreateBooking(context.Background(), renter2, CreateInput{CarID: carX.ID, Start: day(6, 5), End: day(6, 7)})
	requireCode(t, err, CodeAvailabilityConflict)
}

func TestCreateBooking_DateValidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	cases := map[string]CreateInput{
		"equal dates": {CarID: carX.ID, Start: day(6, 1), End: day(6, 1)},
		"inverted":    {CarID: carX.ID, Start: day(6, 5), End: day(6, 1)},
		"past start":  {CarID: carX.ID, Start: testNow.Add(-time.Minute), End: day(6, 1)},
		"zero dates":  {CarID: carX.ID},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(ctx, renter, input)
			requireCode(t, err, CodeValidation)
		})
	}
	require.Empty(t, f.store.bookings)
}

func TestCreateBooking_VerificationGate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	input := CreateInput{CarID: carX.ID, Start: day(6, 1), End: day(6, 3)}

	unverified := Principal{UserID: "new-renter", Role: models.UserRoleRenter}
	_, err := f.svc.CreateBooking(ctx, unverified, input)
	requireCode(t, err, CodeNotVerified)

	b, err := f.svc.CreateBooking(ctx, admin, input)
	require.NoError(t, err)
	require.Equal(t, admin.UserID, b.RenterID)
}

func TestCreateBooking_CarChecks(t *testing.T) {
	pending := models.Car{ID: "car-p", OwnerID: owner.UserID, PricePerDay: 10, ApprovalStatus: models.CarPending}
	f := newFixture(t, Options{}, carX, pending)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, renter, CreateInput{CarID: "missing", Start: day(6, 1), End: day(6, 2)})
	requireCode(t, err, CodeNotFound)

	_, err = f.svc.CreateBooking(ctx, renter, CreateInput{CarID: pending.ID, Start: day(6, 1), End: day(6, 2)})
	requireCode(t, err, CodeValidation)
}

func TestCreateBooking_ConcurrentOverlapping(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// Every range overlaps 2025-06-10.
			_, err := f.svc.CreateBooking(ctx, renter, CreateInput{
				CarID: carX.ID,
				Start: day(6, 10-i%3),
				End:   day(6, 11+i%2),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case CodeOf(err) == CodeAvailabilityConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, created)
	require.Equal(t, workers-1, conflicts)
	requireNoOverlap(t, f.store)
}

func requireNoOverlap(t *testing.T, s *memoryStore) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blocking []models.Booking
	for _, b := range s.bookings {
		if b.Status.IsBlocking() {
			blocking = append(blocking, b)
		}
	}
	for i := range blocking {
		for j := i + 1; j < len(blocking); j++ {
			b1, b2 := blocking[i], blocking[j]
			if b1.CarID != b2.CarID {
				continue
			}
			require.False(t, b1.Range.Overlaps(b2.Range), "bookings %s and %s overlap", b1.ID, b2.ID)
		}
	}
}

func TestCreateBooking_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3, RetryBackoff: time.Millisecond})
	f.store.failNext = 2

	b := f.create(t, renter, day(6, 1), day(6, 2))
	require.Equal(t, models.BookingPending, b.Status)
	require.Equal(t, 3, f.store.txCalls)
}

func TestCreateBooking_RetryExhaustionIsAvailabilityConflict(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	f.store.failNext = 5

	_, err := f.svc.CreateBooking(context.Background(), renter, CreateInput{CarID: carX.ID, Start: day(6, 1), End: day(6, 2)})
	requireCode(t, err, CodeAvailabilityConflict)
	require.Equal(t, 2, f.store.txCalls)
	require.Empty(t, f.store.bookings)
}

func TestCreateBooking_RangeTakenIsAvailabilityConflict(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.insertErrs = []error{ErrRangeTaken}

	_, err := f.svc.CreateBooking(context.Background(), renter, CreateInput{CarID: carX.ID, Start: day(6, 1), End: day(6, 2)})
	requireCode(t, err, CodeAvailabilityConflict)
	require.ErrorIs(t, err, ErrRangeTaken)
	require.Equal(t, 1, f.store.txCalls)
	require.Empty(t, f.store.bookings)
}

func TestCreateBooking_RetriesAbortAfterCheck(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3, RetryBackoff: time.Millisecond})
	f.store.insertErrs = []error{ErrTransient}

	b := f.create(t, renter, day(6, 1), day(6, 2))
	require.Equal(t, 2, f.store.txCalls)
	require.Len(t, f.store.bookings, 1)
	require.Equal(t, b.ID, f.store.bookings[b.ID].ID)
}

func TestCreateBooking_RetriesAttemptTimeout(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 2, RetryBackoff: time.Millisecond, OpTimeout: 20 * time.Millisecond})
	f.store.stallNext = 1

	b := f.create(t, renter, day(6, 1), day(6, 2))
	require.Equal(t, models.BookingPending, b.Status)
	require.Equal(t, 2, f.store.txCalls)
}

func TestCreateBooking_LostCommitAckIsNotAConflict(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3, RetryBackoff: time.Millisecond})
	f.store.lostAcks = 1

	b := f.create(t, renter, day(6, 1), day(6, 4))
	require.Equal(t, models.BookingPending, b.Status)
	require.Equal(t, 2, f.store.txCalls)
	require.Len(t, f.store.bookings, 1)
	require.Contains(t, f.store.bookings, b.ID)
	require.Len(t, f.events.events, 1)
}

func TestCreateBooking_CarLookupExhaustionIsAvailabilityConflict(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	f.store.carErr = ErrTransient

	_, err := f.svc.CreateBooking(context.Background(), renter, CreateInput{CarID: carX.ID, Start: day(6, 1), End: day(6, 2)})
	requireCode(t, err, CodeAvailabilityConflict)
	require.Zero(t, f.store.txCalls)
}

func TestTransition_LoadExhaustionIsConcurrencyConflict(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	ctx := context.Background()
	b := f.create(t, renter, day(6, 1), day(6, 2))
	f.store.getErr = ErrTransient

	_, err := f.svc.ApproveBooking(ctx, owner, b.ID)
	requireCode(t, err, CodeConcurrencyConflict)

	_, err = f.svc.GetBooking(ctx, renter, b.ID)
	requireCode(t, err, CodeConcurrencyConflict)

	f.store.getErr = nil
	f.store.carErr = ErrTransient
	_, err = f.svc.CancelBooking(ctx, renter, b.ID)
	requireCode(t, err, CodeConcurrencyConflict)
	require.Equal(t, models.BookingPending, f.store.bookings[b.ID].Status)
}

func TestTransition_UpdateExhaustionIsConcurrencyConflict(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3, RetryBackoff: time.Millisecond})
	ctx := context.Background()
	b := f.create(t, renter, day(6, 1), day(6, 2))
	f.store.updateErr = ErrTransient

	_, err := f.svc.ApproveBooking(ctx, owner, b.ID)
	requireCode(t, err, CodeConcurrencyConflict)
	require.ErrorIs(t, err, ErrTransient)
	require.Equal(t, models.BookingPending, f.store.bookings[b.ID].Status)
}

func TestGetBooking_RoundTrip(t *testing.T) {
	f := newFixture(t, Options{})
	created := f.create(t, renter, day(7, 1), day(7, 4))

	got, err := f.svc.GetBooking(context.Background(), renter, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.CarID, got.CarID)
	require.Equal(t, created.Range, got.Range)
	require.Equal(t, created.TotalPrice, got.TotalPrice)
	require.Equal(t, 150.0, got.TotalPrice)
}

func TestGetBooking_Authorization(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	b := f.create(t, renter, day(7, 1), day(7, 4))

	_, err := f.svc.GetBooking(ctx, stranger, b.ID)
	requireCode(t, err, CodeAuthorization)

	for _, p := range []Principal{renter, owner, admin} {
		_, err := f.svc.GetBooking(ctx, p, b.ID)
		require.NoError(t, err, p.UserID)
	}

	_, err = f.svc.GetBooking(ctx, admin, "missing")
	requireCode(t, err, CodeNotFound)
}

func TestCancelBooking_TerminalIsNotReapplied(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	b := f.create(t, renter, day(7, 1), day(7, 4))

	cancelled, err := f.svc.CancelBooking(ctx, renter, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingCancelled, cancelled.Status)
	updatedAt := cancelled.UpdatedAt

	_, err = f.svc.CancelBooking(ctx, renter, b.ID)
	requireCode(t, err, CodeInvalidTransition)
	var typed *Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, ActionCancel, typed.Action)
	require.Equal(t, models.BookingCancelled, typed.Current)

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingCancelled, stored.Status)
	require.Equal(t, updatedAt, stored.UpdatedAt)
	require.Equal(t, []EventType{EventCreated, EventCancelled}, f.events.types())
}

func TestCancelBooking_FreesRange(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	b := f.create(t, renter, day(7, 1), day(7, 4))

	_, err := f.svc.CancelBooking(ctx, owner, b.ID)
	requireCode(t, err, CodeAuthorization)

	_, err = f.svc.CancelBooking(ctx, admin, b.ID)
	require.NoError(t, err)

	f.create(t, renter2, day(7, 2), day(7, 3))
}

func TestApproveAndReject(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.create(t, renter, day(8, 1), day(8, 3))

	_, err := f.svc.ApproveBooking(ctx, renter, a.ID)
	requireCode(t, err, CodeAuthorization)

	approved, err := f.svc.ApproveBooking(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingApproved, approved.Status)

	_, err = f.svc.RejectBooking(ctx, owner, a.ID)
	requireCode(t, err, CodeInvalidTransition)

	// APPROVED still blocks the range.
	_, err = f.svc.CreateBooking(ctx, renter2, CreateInput{CarID: carX.ID, Start: day(8, 2), End: day(8, 4)})
	requireCode(t, err, CodeAvailabilityConflict)

	b := f.create(t, renter2, day(8, 10), day(8, 12))
	rejected, err := f.svc.RejectBooking(ctx, admin, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingRejected, rejected.Status)

	// REJECTED does not block.
	f.create(t, renter, day(8, 10), day(8, 12))
}

func TestConfirmAndComplete(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	b := f.create(t, renter, day(6, 1), day(6, 3))

	_, err := f.svc.ConfirmBooking(ctx, admin, b.ID)
	requireCode(t, err, CodeInvalidTransition)

	_, err = f.svc.ApproveBooking(ctx, owner, b.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmBooking(ctx, owner, b.ID)
	requireCode(t, err, CodeAuthorization)

	confirmed, err := f.svc.ConfirmBooking(ctx, admin, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingConfirmed, confirmed.Status)

	_, err = f.svc.CancelBooking(ctx, renter, b.ID)
	requireCode(t, err, CodeInvalidTransition)

	f.svc.SetClock(func() time.Time { return day(6, 4) })
	n, err := f.svc.CompleteEndedTrips(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	done, err := f.svc.GetBooking(ctx, renter, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingCompleted, done.Status)

	_, err = f.svc.CancelBooking(ctx, renter, b.ID)
	requireCode(t, err, CodeInvalidTransition)

	// A completed trip does not block later ranges.
	f.svc.SetClock(func() time.Time { return testNow })
	f.create(t, renter2, day(6, 3), day(6, 5))
}

func TestCompleteEndedTrips_SkipsOngoing(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.put(models.Booking{ID: "ongoing", CarID: carX.ID, RenterID: renter.UserID,
		Range: models.DateRange{Start: day(4, 28), End: day(5, 3)}, Status: models.BookingConfirmed})
	f.store.put(models.Booking{ID: "ended", CarID: carX.ID, RenterID: renter.UserID,
		Range: models.DateRange{Start: day(4, 20), End: day(4, 22)}, Status: models.BookingConfirmed})

	n, err := f.svc.CompleteEndedTrips(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ongoing, _ := f.store.GetBooking(context.Background(), "ongoing")
	require.Equal(t, models.BookingConfirmed, ongoing.Status)
}

func TestTransition_LosingRaceIsConcurrencyConflict(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	b := f.create(t, renter, day(9, 1), day(9, 3))

	// The renter cancels between the owner's read and write.
	f.store.beforeUpdate = func() {
		f.store.beforeUpdate = nil
		_, err := f.svc.CancelBooking(ctx, renter, b.ID)
		require.NoError(t, err)
	}

	_, err := f.svc.ApproveBooking(ctx, owner, b.ID)
	requireCode(t, err, CodeConcurrencyConflict)

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BookingCancelled, stored.Status)
}

func TestListMyBookings(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.create(t, renter, day(6, 1), day(6, 2))
	f.create(t, renter2, day(6, 10), day(6, 12))

	mine, err := f.svc.ListMyBookings(ctx, renter)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, renter.UserID, mine[0].RenterID)

	owned, err := f.svc.ListMyBookings(ctx, owner)
	require.NoError(t, err)
	require.Len(t, owned, 2)

	none, err := f.svc.ListMyBookings(ctx, stranger)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	b := f.create(t, renter, day(6, 1), day(6, 5))

	avail, err := f.svc.CheckAvailability(ctx, carX.ID, day(6, 5), day(6, 6))
	require.NoError(t, err)
	require.False(t, avail.Available)
	require.Equal(t, b.ID, avail.Conflict.ID)

	avail, err = f.svc.CheckAvailability(ctx, carX.ID, day(6, 6), day(6, 7))
	require.NoError(t, err)
	require.True(t, avail.Available)

	_, err = f.svc.CheckAvailability(ctx, carX.ID, day(6, 7), day(6, 7))
	requireCode(t, err, CodeValidation)
}

func TestCheckAvailability_UnlistedCarIsNotFound(t *testing.T) {
	pending := models.Car{ID: "car-p", OwnerID: owner.UserID, PricePerDay: 10, ApprovalStatus: models.CarPending}
	f := newFixture(t, Options{}, carX, pending)

	_, err := f.svc.CheckAvailability(context.Background(), pending.ID, day(6, 1), day(6, 2))
	requireCode(t, err, CodeNotFound)
}
