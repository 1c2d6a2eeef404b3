package expiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/kafka"
	"github.com/Domenick1991/flightseats/internal/lock"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n kafka.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type seed struct {
	store        *repository.MemoryStore
	departed     *domain.Flight
	upcoming     *domain.Flight
	waitlisted   []domain.Booking
	confirmed    domain.Booking
	futureWaitee domain.Booking
}

func newSeed(t *testing.T) *seed {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	s := &seed{store: store}

	carrier := &domain.Airline{CodeIATA: "SU", CodeICAO: "AFL", Name: "Aeroflot", Country: "Russia", FleetSize: 180}
	require.NoError(t, store.Airlines().Create(ctx, carrier))

	mkFlight := func(departure time.Time) *domain.Flight {
		f := &domain.Flight{
			AirlineID:     carrier.ID,
			FlightNumber:  "SU300",
			DepartureTime: departure,
			ArrivalTime:   departure.Add(2 * time.Hour),
			Capacity:      50,
			BasePrice:     decimal.RequireFromString("100"),
		}
		require.NoError(t, store.Flights().Create(ctx, f))
		return f
	}
	s.departed = mkFlight(time.Now().Add(-time.Hour))
	s.upcoming = mkFlight(time.Now().Add(time.Hour))

	mkBooking := func(flightID int64, seat string, status domain.BookingStatus) domain.Booking {
		p := &domain.Passenger{FirstName: "P", LastName: seat, Email: fmt.Sprintf("%s-%d@example.com", seat, flightID)}
		require.NoError(t, store.Passengers().Create(ctx, p))
		b := &domain.Booking{FlightID: flightID, PassengerID: p.ID, SeatNumber: seat, Status: status, Price: decimal.RequireFromString("150")}
		require.NoError(t, store.Bookings().Create(ctx, b))
		return *b
	}
	s.confirmed = mkBooking(s.departed.ID, "1A", domain.BookingStatusConfirmed)
	s.waitlisted = []domain.Booking{
		mkBooking(s.departed.ID, "W1", domain.BookingStatusWaitlisted),
		mkBooking(s.departed.ID, "W2", domain.BookingStatusWaitlisted),
	}
	s.futureWaitee = mkBooking(s.upcoming.ID, "W1", domain.BookingStatusWaitlisted)

	f, err := store.Flights().GetByID(ctx, s.departed.ID)
	require.NoError(t, err)
	f.BookedSeats = 1
	require.NoError(t, store.Flights().SetBookedSeats(ctx, f))
	return s
}

func (s *seed) status(t *testing.T, id int64) domain.BookingStatus {
	t.Helper()
	b, err := s.store.Bookings().GetByID(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func TestSweeper_Sweep(t *testing.T) {
	s := newSeed(t)
	notifier := &MockNotifier{}
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n kafka.Notification) bool {
		return n.Type == kafka.BookingExpired && n.Email != ""
	})).Return(nil).Twice()
	sweeper := NewSweeper(s.store, lock.NewKeyedMutex(time.Second), zap.NewNop(), WithNotifier(notifier))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Cancelled: 2}, result)

	for _, b := range s.waitlisted {
		assert.Equal(t, domain.BookingStatusCancelled, s.status(t, b.ID))
	}
	assert.Equal(t, domain.BookingStatusConfirmed, s.status(t, s.confirmed.ID))
	assert.Equal(t, domain.BookingStatusWaitlisted, s.status(t, s.futureWaitee.ID))

	f, err := s.store.Flights().GetByID(context.Background(), s.departed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.BookedSeats, "sweeping never touches seat counts")
	notifier.AssertExpectations(t)
}

func TestSweeper_Idempotent(t *testing.T) {
	s := newSeed(t)
	sweeper := NewSweeper(s.store, lock.NewKeyedMutex(time.Second), zap.NewNop())

	_, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
}

func TestSweeper_UsesClock(t *testing.T) {
	s := newSeed(t)
	later := func() time.Time { return time.Now().Add(3 * time.Hour) }
	sweeper := NewSweeper(s.store, lock.NewKeyedMutex(time.Second), zap.NewNop(), WithClock(later))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Cancelled)
	assert.Equal(t, domain.BookingStatusCancelled, s.status(t, s.futureWaitee.ID))
}

// flakyStore fails status updates for one booking.
type flakyStore struct {
	repository.Store
	failID int64
}

func (s flakyStore) Bookings() repository.BookingRepository {
	return flakyBookings{BookingRepository: s.Store.Bookings(), failID: s.failID}
}

type flakyBookings struct {
	repository.BookingRepository
	failID int64
}

func (b flakyBookings) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	if id == b.failID {
		return nil, errors.New("connection reset")
	}
	return b.BookingRepository.UpdateStatus(ctx, id, status)
}

func TestSweeper_ContinuesPastFailures(t *testing.T) {
	s := newSeed(t)
	store := flakyStore{Store: s.store, failID: s.waitlisted[0].ID}
	sweeper := NewSweeper(store, lock.NewKeyedMutex(time.Second), zap.NewNop())

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Cancelled: 1, Failed: 1}, result)
	assert.Equal(t, domain.BookingStatusWaitlisted, s.status(t, s.waitlisted[0].ID))
	assert.Equal(t, domain.BookingStatusCancelled, s.status(t, s.waitlisted[1].ID))
}

func TestSweeper_SkipsBookingsChangedSinceListing(t *testing.T) {
	s := newSeed(t)
	_, err := s.store.Bookings().UpdateStatus(context.Background(), s.waitlisted[0].ID, domain.BookingStatusConfirmed)
	require.NoError(t, err)

	stale := staleStore{Store: s.store, listed: s.waitlisted}
	sweeper := NewSweeper(stale, lock.NewKeyedMutex(time.Second), zap.NewNop())

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Cancelled: 1, Skipped: 1}, result)
	assert.Equal(t, domain.BookingStatusConfirmed, s.status(t, s.waitlisted[0].ID))
}

// staleStore replays a listing taken before a concurrent promotion.
type staleStore struct {
	repository.Store
	listed []domain.Booking
}

func (s staleStore) Bookings() repository.BookingRepository {
	return staleBookings{BookingRepository: s.Store.Bookings(), listed: s.listed}
}

type staleBookings struct {
	repository.BookingRepository
	listed []domain.Booking
}

func (b staleBookings) ListWaitlistedDeparted(context.Context, time.Time) ([]domain.Booking, error) {
	return b.listed, nil
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, int64) (func(), error) {
	return nil, lock.ErrLockTimeout
}

func TestSweeper_LockUnavailable(t *testing.T) {
	s := newSeed(t)
	sweeper := NewSweeper(s.store, busyLocker{}, zap.NewNop())

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Failed: 2}, result)
	assert.Equal(t, domain.BookingStatusWaitlisted, s.status(t, s.waitlisted[0].ID))
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	s := newSeed(t)
	sweeper := NewSweeper(s.store, lock.NewKeyedMutex(time.Second), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, sweeper.Run(ctx, 10*time.Millisecond))
	assert.Equal(t, domain.BookingStatusCancelled, s.status(t, s.waitlisted[0].ID))
}

func TestGroupByFlight(t *testing.T) {
	groups := groupByFlight([]domain.Booking{{ID: 1, FlightID: 2}, {ID: 2, FlightID: 1}, {ID: 3, FlightID: 2}})
	require.Len(t, groups, 2)
	assert.Equal(t, []int64{1, 3}, []int64{groups[0][0].ID, groups[0][1].ID})
	assert.Equal(t, int64(2), groups[1][0].ID)
}
