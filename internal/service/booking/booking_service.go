package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/identity"
	"github.com/Domenick1991/flightseats/internal/kafka"
	"github.com/Domenick1991/flightseats/internal/lock"
	"github.com/Domenick1991/flightseats/internal/metrics"
	"github.com/Domenick1991/flightseats/internal/pricing"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/Domenick1991/flightseats/internal/service/loyalty"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, caller identity.Caller, input CreateBookingInput) (*BookingResult, error)
	CancelBooking(ctx context.Context, caller identity.Caller, bookingID int64) (*CancellationResult, error)
	GetBooking(ctx context.Context, caller identity.Caller, bookingID int64) (*domain.Booking, error)
	ListPassengerBookings(ctx context.Context, caller identity.Caller, passengerID int64) ([]domain.Booking, error)
	ListFlightBookings(ctx context.Context, caller identity.Caller, flightID int64) ([]domain.Booking, error)
	ListAllBookings(ctx context.Context, caller identity.Caller, limit, offset int) ([]domain.Booking, error)
}

type Notifier interface {
	Notify(ctx context.Context, n kafka.Notification) error
}

type FlightsCache interface {
	InvalidateFlights(ctx context.Context) error
}

type CreateBookingInput struct {
	FlightID int64 `json:"flight_id"`
	// PassengerID is honoured only for administrative callers.
	PassengerID int64  `json:"passenger_id,omitempty"`
	SeatNumber  string `json:"seat_number"`
}

type BookingResult struct {
	Booking *domain.Booking `json:"booking"`
	Message string          `json:"message"`
}

type CancellationResult struct {
	Booking          *domain.Booking      `json:"booking"`
	PriorStatus      domain.BookingStatus `json:"prior_status"`
	Refund           decimal.Decimal      `json:"refund"`
	PointsClawedBack int                  `json:"points_clawed_back"`
	Promoted         *domain.Booking      `json:"promoted,omitempty"`
}

type BookingService struct {
	store         repository.Store
	locker        lock.Locker
	ledger        *loyalty.Ledger
	notifier      Notifier
	cache         FlightsCache
	metrics       *metrics.Metrics
	log           *zap.Logger
	maxRetries    int
	notifyTimeout time.Duration
	now           func() time.Time
	inflight      sync.WaitGroup
}

type BookingServiceOption func(*BookingService)

func WithNotifier(n Notifier) BookingServiceOption {
	return func(s *BookingService) { s.notifier = n }
}

func WithFlightsCache(c FlightsCache) BookingServiceOption {
	return func(s *BookingService) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) BookingServiceOption {
	return func(s *BookingService) { s.metrics = m }
}

func WithLogger(log *zap.Logger) BookingServiceOption {
	return func(s *BookingService) { s.log = log }
}

func WithMaxRetries(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithNotificationTimeout(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) { s.now = now }
}

func NewBookingService(store repository.Store, locker lock.Locker, ledger *loyalty.Ledger, opts ...BookingServiceOption) *BookingService {
	s := &BookingService{
		store:         store,
		locker:        locker,
		ledger:        ledger,
		log:           zap.NewNop(),
		maxRetries:    3,
		notifyTimeout: 5 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ BookingUseCase = (*BookingService)(nil)

// Wait blocks until notifications already handed off have finished.
func (s *BookingService) Wait() {
	s.inflight.Wait()
}

func (s *BookingService) CreateBooking(ctx context.Context, caller identity.Caller, input CreateBookingInput) (*BookingResult, error) {
	seat, err := domain.NormalizeSeatNumber(input.SeatNumber)
	if err != nil {
		return nil, err
	}
	passengerID, err := resolvePassenger(caller, input.PassengerID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockFlight(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var outcome *allocation
	err = s.withRetry(ctx, "create booking", func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			a, err := s.allocate(ctx, tx, input.FlightID, passengerID, seat)
			outcome = a
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	b := outcome.booking
	s.metrics.BookingCreated(string(b.Status))
	s.log.Info("booking created",
		zap.Int64("booking_id", b.ID),
		zap.Int64("flight_id", b.FlightID),
		zap.Int64("passenger_id", b.PassengerID),
		zap.String("seat", b.SeatNumber),
		zap.String("status", string(b.Status)),
		zap.String("price", b.Price.StringFixed(2)),
	)
	s.invalidateFlights(ctx)

	kind := kafka.BookingConfirmed
	message := fmt.Sprintf("Seat %s confirmed at %s", b.SeatNumber, b.Price.StringFixed(2))
	if b.Status == domain.BookingStatusWaitlisted {
		kind = kafka.BookingWaitlisted
		message = fmt.Sprintf("Flight is full; seat %s added to the waitlist at %s", b.SeatNumber, b.Price.StringFixed(2))
	}
	s.dispatch(ctx, notification(kind, b, outcome.flight, outcome.passenger, b.Price, message))

	return &BookingResult{Booking: b, Message: message}, nil
}

type allocation struct {
	booking   *domain.Booking
	flight    *domain.Flight
	passenger *domain.Passenger
}

// allocate admits one booking. The caller holds the flight lock.
func (s *BookingService) allocate(ctx context.Context, tx repository.Store, flightID, passengerID int64, seat string) (*allocation, error) {
	flight, err := tx.Flights().GetForUpdate(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if flight.HasDeparted(s.now()) {
		return nil, fmt.Errorf("flight %d: %w", flightID, domain.ErrDepartedFlight)
	}

	passenger, err := tx.Passengers().GetByID(ctx, passengerID)
	if err != nil {
		return nil, err
	}

	dup, err := tx.Bookings().HasActiveForPassenger(ctx, flightID, passengerID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, fmt.Errorf("passenger %d on flight %d: %w", passengerID, flightID, domain.ErrDuplicateBooking)
	}

	taken, err := tx.Bookings().IsSeatTaken(ctx, flightID, seat)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("seat %s on flight %d: %w", seat, flightID, domain.ErrSeatTaken)
	}

	// Occupancy is read before anything in this operation mutates the flight.
	ratio := flight.OccupancyRatio()
	price := pricing.Price(flight.BasePrice, ratio, passenger.LoyaltyPoints)

	if !flight.WithinOverbookingCeiling() {
		return nil, fmt.Errorf("flight %d at %d/%d seats: %w",
			flightID, flight.BookedSeats, flight.OverbookingCeiling(), domain.ErrOverbooking)
	}

	status := domain.BookingStatusWaitlisted
	if flight.HasRoom() {
		status = domain.BookingStatusConfirmed
	}

	b := &domain.Booking{
		FlightID:    flightID,
		PassengerID: passengerID,
		SeatNumber:  seat,
		Status:      status,
		Price:       price,
	}
	if err := tx.Bookings().Create(ctx, b); err != nil {
		return nil, err
	}

	if status == domain.BookingStatusConfirmed {
		flight.IncrementBooked()
		if err := tx.Flights().SetBookedSeats(ctx, flight); err != nil {
			return nil, err
		}
		if _, _, err := s.ledger.Award(ctx, tx.Passengers(), passengerID, price); err != nil {
			return nil, err
		}
	}

	return &allocation{booking: b, flight: flight, passenger: passenger}, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, caller identity.Caller, bookingID int64) (*CancellationResult, error) {
	current, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(current.PassengerID) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, domain.ErrForbidden)
	}

	unlock, err := s.lockFlight(ctx, current.FlightID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result  *CancellationResult
		notices []kafka.Notification
	)
	err = s.withRetry(ctx, "cancel booking", func() error {
		return s.store.InTx(ctx, func(tx repository.Store) error {
			r, n, err := s.cancel(ctx, tx, bookingID)
			result, notices = r, n
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingCancelled(string(result.PriorStatus))
	fields := []zap.Field{
		zap.Int64("booking_id", bookingID),
		zap.Int64("flight_id", result.Booking.FlightID),
		zap.String("prior_status", string(result.PriorStatus)),
	}
	if result.PriorStatus == domain.BookingStatusConfirmed {
		fields = append(fields,
			zap.String("refund", result.Refund.StringFixed(2)),
			zap.Int("points_clawed_back", result.PointsClawedBack))
	}
	s.log.Info("booking cancelled", fields...)
	if result.Promoted != nil {
		s.metrics.Promoted()
		s.log.Info("waitlisted booking promoted",
			zap.Int64("booking_id", result.Promoted.ID), zap.Int64("flight_id", result.Promoted.FlightID))
	}
	if result.PriorStatus == domain.BookingStatusConfirmed {
		s.invalidateFlights(ctx)
	}
	s.dispatch(ctx, notices...)

	return result, nil
}

func (s *BookingService) cancel(ctx context.Context, tx repository.Store, bookingID int64) (*CancellationResult, []kafka.Notification, error) {
	b, err := tx.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.Status == domain.BookingStatusCancelled {
		return nil, nil, fmt.Errorf("booking %d: %w", bookingID, domain.ErrAlreadyCancelled)
	}
	prior := b.Status

	cancelled, err := tx.Bookings().UpdateStatus(ctx, bookingID, domain.BookingStatusCancelled)
	if err != nil {
		return nil, nil, err
	}
	result := &CancellationResult{Booking: cancelled, PriorStatus: prior, Refund: decimal.Zero}

	flight, err := tx.Flights().GetForUpdate(ctx, b.FlightID)
	if err != nil {
		return nil, nil, err
	}
	passenger, err := tx.Passengers().GetByID(ctx, b.PassengerID)
	if err != nil {
		return nil, nil, err
	}

	if prior != domain.BookingStatusConfirmed {
		n := notification(kafka.BookingCancelled, cancelled, flight, passenger, decimal.Zero,
			"Your waitlisted booking has been cancelled")
		return result, []kafka.Notification{n}, nil
	}

	result.Refund = pricing.Refund(b.Price)
	clawed, _, err := s.ledger.Clawback(ctx, tx.Passengers(), b.PassengerID, b.Price)
	if err != nil {
		return nil, nil, err
	}
	result.PointsClawedBack = clawed

	flight.DecrementBooked()
	if err := tx.Flights().SetBookedSeats(ctx, flight); err != nil {
		return nil, nil, err
	}

	notices := []kafka.Notification{notification(kafka.BookingCancelled, cancelled, flight, passenger, result.Refund,
		fmt.Sprintf("Booking cancelled; %s refunded", result.Refund.StringFixed(2)))}

	promoted, err := s.promote(ctx, tx, flight)
	if err != nil {
		return nil, nil, err
	}
	if promoted != nil {
		result.Promoted = promoted.booking
		notices = append(notices, notification(kafka.BookingPromoted, promoted.booking, flight, promoted.passenger,
			promoted.booking.Price, fmt.Sprintf("Seat %s is now confirmed", promoted.booking.SeatNumber)))
	}
	return result, notices, nil
}

// promote confirms at most the oldest waitlisted booking, keeping its
// original price.
func (s *BookingService) promote(ctx context.Context, tx repository.Store, flight *domain.Flight) (*allocation, error) {
	waitlisted, err := tx.Bookings().ListWaitlisted(ctx, flight.ID)
	if err != nil {
		return nil, err
	}
	if len(waitlisted) == 0 || !flight.WithinOverbookingCeiling() {
		return nil, nil
	}

	// A listed booking may have left the waitlist since it was read; the
	// next one in line takes the seat instead.
	var (
		head     domain.Booking
		promoted *domain.Booking
	)
	for _, candidate := range waitlisted {
		promoted, err = tx.Bookings().UpdateStatus(ctx, candidate.ID, domain.BookingStatusConfirmed)
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.log.Debug("skipping stale waitlist entry", zap.Int64("booking_id", candidate.ID), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		head = candidate
		break
	}
	if promoted == nil {
		return nil, nil
	}
	flight.IncrementBooked()
	if err := tx.Flights().SetBookedSeats(ctx, flight); err != nil {
		return nil, err
	}
	if _, _, err := s.ledger.Award(ctx, tx.Passengers(), head.PassengerID, head.Price); err != nil {
		return nil, err
	}
	passenger, err := tx.Passengers().GetByID(ctx, head.PassengerID)
	if err != nil {
		return nil, err
	}
	return &allocation{booking: promoted, flight: flight, passenger: passenger}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, caller identity.Caller, bookingID int64) (*domain.Booking, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(b.PassengerID) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, domain.ErrForbidden)
	}
	return b, nil
}

func (s *BookingService) ListPassengerBookings(ctx context.Context, caller identity.Caller, passengerID int64) ([]domain.Booking, error) {
	if !caller.CanAccess(passengerID) {
		return nil, fmt.Errorf("passenger %d: %w", passengerID, domain.ErrForbidden)
	}
	if _, err := s.store.Passengers().GetByID(ctx, passengerID); err != nil {
		return nil, err
	}
	return s.store.Bookings().ListByPassenger(ctx, passengerID)
}

func (s *BookingService) ListFlightBookings(ctx context.Context, caller identity.Caller, flightID int64) ([]domain.Booking, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("flight %d bookings: %w", flightID, domain.ErrForbidden)
	}
	if _, err := s.store.Flights().GetByID(ctx, flightID); err != nil {
		return nil, err
	}
	return s.store.Bookings().ListByFlight(ctx, flightID)
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListAllBookings pages through every booking, newest first. A zero limit
// means DefaultPageSize.
func (s *BookingService) ListAllBookings(ctx context.Context, caller identity.Caller, limit, offset int) ([]domain.Booking, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("all bookings: %w", domain.ErrForbidden)
	}
	if limit < 0 || limit > MaxPageSize || offset < 0 {
		return nil, domain.ValidationError(fmt.Sprintf("limit must be 0-%d and offset non-negative", MaxPageSize))
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	return s.store.Bookings().List(ctx, limit, offset)
}

func resolvePassenger(caller identity.Caller, requested int64) (int64, error) {
	if caller.Admin && requested != 0 {
		return requested, nil
	}
	if caller.PassengerID != 0 {
		return caller.PassengerID, nil
	}
	return 0, fmt.Errorf("no passenger to book for: %w", domain.ErrNotFound)
}

func (s *BookingService) lockFlight(ctx context.Context, flightID int64) (func(), error) {
	unlock, err := s.locker.Lock(ctx, flightID)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return nil, fmt.Errorf("flight %d is busy: %w", flightID, domain.ErrConflict)
		}
		return nil, err
	}
	return unlock, nil
}

// withRetry reruns op while it fails on storage contention, then reports
// ErrConflict. Any other error stops immediately.
func (s *BookingService) withRetry(ctx context.Context, opName string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op()
		switch {
		case err == nil:
			return struct{}{}, nil
		case repository.IsRetryable(err):
			s.metrics.Retried()
			s.log.Debug("retrying after contention",
				zap.String("op", opName), zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(s.maxRetries)))

	if err != nil && repository.IsRetryable(err) {
		s.log.Warn("giving up after contention",
			zap.String("op", opName), zap.Int("attempts", attempt), zap.Error(err))
		return fmt.Errorf("%s: %w", opName, errors.Join(domain.ErrConflict, err))
	}
	return err
}

func (s *BookingService) invalidateFlights(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.log.Warn("invalidate flights cache", zap.Error(err))
	}
}

// dispatch hands notifications to the notifier without blocking the caller.
// Failures are logged and counted only.
func (s *BookingService) dispatch(ctx context.Context, notices ...kafka.Notification) {
	if s.notifier == nil || len(notices) == 0 {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		for _, n := range notices {
			if err := s.notifier.Notify(nctx, n); err != nil {
				s.metrics.NotificationFailed()
				s.log.Warn("notification failed",
					zap.String("type", string(n.Type)), zap.Int64("booking_id", n.BookingID), zap.Error(err))
			}
		}
	}()
}

func notification(kind kafka.NotificationType, b *domain.Booking, f *domain.Flight, p *domain.Passenger, amount decimal.Decimal, message string) kafka.Notification {
	return kafka.Notification{
		ID:           uuid.NewString(),
		Type:         kind,
		BookingID:    b.ID,
		FlightID:     b.FlightID,
		FlightNumber: f.FlightNumber,
		PassengerID:  b.PassengerID,
		Email:        p.Email,
		SeatNumber:   b.SeatNumber,
		Status:       string(b.Status),
		Amount:       amount,
		Message:      message,
		OccurredAt:   time.Now().UTC(),
	}
}
