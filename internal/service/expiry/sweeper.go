// Package expiry cancels waitlisted bookings on flights that have departed.
package expiry

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/kafka"
	"github.com/Domenick1991/flightseats/internal/lock"
	"github.com/Domenick1991/flightseats/internal/metrics"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Notifier interface {
	Notify(ctx context.Context, n kafka.Notification) error
}

type SweepResult struct {
	Scanned   int `json:"scanned"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Sweeper struct {
	store         repository.Store
	locker        lock.Locker
	notifier      Notifier
	metrics       *metrics.Metrics
	log           *zap.Logger
	notifyTimeout time.Duration
	now           func() time.Time
}

type Option func(*Sweeper)

func WithNotifier(n Notifier) Option {
	return func(s *Sweeper) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(store repository.Store, locker lock.Locker, log *zap.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:         store,
		locker:        locker,
		log:           log,
		notifyTimeout: 5 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep cancels every WAITLISTED booking whose flight has departed. Seat
// counts are untouched and nobody is promoted. A booking that fails is logged
// and left for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	stale, err := s.store.Bookings().ListWaitlistedDeparted(ctx, s.now())
	if err != nil {
		return result, err
	}
	result.Scanned = len(stale)

	for _, group := range groupByFlight(stale) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.sweepFlight(ctx, group, &result)
	}

	s.metrics.Expired(result.Cancelled)
	if result.Scanned > 0 {
		s.log.Info("expiry sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("cancelled", result.Cancelled),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func (s *Sweeper) sweepFlight(ctx context.Context, bookings []domain.Booking, result *SweepResult) {
	flightID := bookings[0].FlightID
	unlock, err := s.locker.Lock(ctx, flightID)
	if err != nil {
		s.log.Warn("skip flight, lock unavailable", zap.Int64("flight_id", flightID), zap.Error(err))
		result.Failed += len(bookings)
		return
	}
	defer unlock()

	for _, b := range bookings {
		// Re-read under the lock: a cancellation may have promoted or
		// cancelled the booking since it was listed.
		current, err := s.store.Bookings().GetByID(ctx, b.ID)
		if err != nil {
			s.log.Error("reload waitlisted booking", zap.Int64("booking_id", b.ID), zap.Error(err))
			result.Failed++
			continue
		}
		if current.Status != domain.BookingStatusWaitlisted {
			result.Skipped++
			continue
		}

		cancelled, err := s.store.Bookings().UpdateStatus(ctx, b.ID, domain.BookingStatusCancelled)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				result.Skipped++
				continue
			}
			s.log.Error("expire waitlisted booking", zap.Int64("booking_id", b.ID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Cancelled++
		s.log.Info("auto-cancelled waitlisted booking on departed flight",
			zap.Int64("booking_id", b.ID), zap.Int64("flight_id", flightID))
		s.notify(ctx, cancelled)
	}
}

func (s *Sweeper) notify(ctx context.Context, b *domain.Booking) {
	if s.notifier == nil {
		return
	}
	passenger, err := s.store.Passengers().GetByID(ctx, b.PassengerID)
	if err != nil {
		s.log.Warn("expiry notification recipient", zap.Int64("booking_id", b.ID), zap.Error(err))
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	err = s.notifier.Notify(nctx, kafka.Notification{
		ID:          uuid.NewString(),
		Type:        kafka.BookingExpired,
		BookingID:   b.ID,
		FlightID:    b.FlightID,
		PassengerID: b.PassengerID,
		Email:       passenger.Email,
		SeatNumber:  b.SeatNumber,
		Status:      string(b.Status),
		Amount:      decimal.Zero,
		Message:     "The flight departed before a seat became available",
		OccurredAt:  s.now().UTC(),
	})
	if err != nil {
		s.metrics.NotificationFailed()
		s.log.Warn("expiry notification failed", zap.Int64("booking_id", b.ID), zap.Error(err))
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("expiry sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func groupByFlight(bookings []domain.Booking) [][]domain.Booking {
	var groups [][]domain.Booking
	index := make(map[int64]int)
	for _, b := range bookings {
		i, ok := index[b.FlightID]
		if !ok {
			i = len(groups)
			index[b.FlightID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], b)
	}
	return groups
}
