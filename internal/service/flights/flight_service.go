package flights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/identity"
	"github.com/Domenick1991/flightseats/internal/lock"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, caller identity.Caller, input FlightInput) (*domain.Flight, error)
	Update(ctx context.Context, caller identity.Caller, id int64, input FlightInput) (*domain.Flight, error)
	Delete(ctx context.Context, caller identity.Caller, id int64) error
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type FlightInput struct {
	AirlineID     int64           `json:"airline_id"`
	FlightNumber  string          `json:"flight_number"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureTime time.Time       `json:"departure_time"`
	ArrivalTime   time.Time       `json:"arrival_time"`
	Capacity      int             `json:"capacity"`
	BasePrice     decimal.Decimal `json:"base_price"`
}

type FlightService struct {
	store  repository.Store
	locker lock.Locker
	cache  FlightCache
	log    *zap.Logger
	now    func() time.Time
}

func NewFlightService(store repository.Store, locker lock.Locker, cache FlightCache, log *zap.Logger) *FlightService {
	return &FlightService{store: store, locker: locker, cache: cache, log: log, now: time.Now}
}

var _ FlightUseCase = (*FlightService)(nil)

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.store.Flights().List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			s.log.Warn("cache flights", zap.Error(err))
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.store.Flights().GetByID(ctx, id)
}

func (s *FlightService) Create(ctx context.Context, caller identity.Caller, input FlightInput) (*domain.Flight, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("create flight: %w", domain.ErrForbidden)
	}
	f, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	if err := checkAirline(ctx, s.store, f.AirlineID); err != nil {
		return nil, err
	}

	if err := s.store.Flights().Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create flight: %w", err)
	}
	s.log.Info("flight created", zap.Int64("flight_id", f.ID), zap.String("flight_number", f.FlightNumber))
	s.invalidate(ctx)
	return f, nil
}

// Update rewrites a flight's schedule and pricing. Flights that already hold
// bookings are frozen.
func (s *FlightService) Update(ctx context.Context, caller identity.Caller, id int64, input FlightInput) (*domain.Flight, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("update flight %d: %w", id, domain.ErrForbidden)
	}
	f, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	f.ID = id

	err = s.withUnbookedFlight(ctx, id, func(tx repository.Store) error {
		if err := checkAirline(ctx, tx, f.AirlineID); err != nil {
			return err
		}
		return tx.Flights().Update(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("flight updated", zap.Int64("flight_id", id))
	s.invalidate(ctx)
	return f, nil
}

func (s *FlightService) Delete(ctx context.Context, caller identity.Caller, id int64) error {
	if !caller.Admin {
		return fmt.Errorf("delete flight %d: %w", id, domain.ErrForbidden)
	}
	err := s.withUnbookedFlight(ctx, id, func(tx repository.Store) error {
		return tx.Flights().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("flight deleted", zap.Int64("flight_id", id))
	s.invalidate(ctx)
	return nil
}

func (s *FlightService) withUnbookedFlight(ctx context.Context, id int64, fn func(tx repository.Store) error) error {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("flight %d is busy: %w", id, domain.ErrConflict)
	}
	defer unlock()

	return s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Flights().GetForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.Bookings().CountByFlight(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("flight %d has %d bookings: %w", id, n, domain.ErrConflict)
		}
		return fn(tx)
	})
}

func (s *FlightService) validate(input FlightInput) (*domain.Flight, error) {
	f := &domain.Flight{
		AirlineID:     input.AirlineID,
		FlightNumber:  strings.ToUpper(strings.TrimSpace(input.FlightNumber)),
		Origin:        strings.ToUpper(strings.TrimSpace(input.Origin)),
		Destination:   strings.ToUpper(strings.TrimSpace(input.Destination)),
		DepartureTime: input.DepartureTime,
		ArrivalTime:   input.ArrivalTime,
		Capacity:      input.Capacity,
		BasePrice:     input.BasePrice.Round(2),
	}

	switch {
	case f.FlightNumber == "":
		return nil, domain.ValidationError("flight number is required")
	case utf8.RuneCountInString(f.FlightNumber) > domain.MaxFlightNumberLen:
		return nil, domain.ValidationError(fmt.Sprintf("flight number must be at most %d characters", domain.MaxFlightNumberLen))
	case f.Origin == "" || f.Destination == "":
		return nil, domain.ValidationError("origin and destination are required")
	case utf8.RuneCountInString(f.Origin) > domain.MaxAirportLen || utf8.RuneCountInString(f.Destination) > domain.MaxAirportLen:
		return nil, domain.ValidationError(fmt.Sprintf("origin and destination must be at most %d characters", domain.MaxAirportLen))
	case f.Origin == f.Destination:
		return nil, domain.ValidationError("origin and destination must differ")
	case f.Capacity < domain.MinCapacity || f.Capacity > domain.MaxCapacity:
		return nil, domain.ValidationError(fmt.Sprintf("capacity must be between %d and %d", domain.MinCapacity, domain.MaxCapacity))
	case !f.BasePrice.IsPositive():
		return nil, domain.ValidationError("base price must be positive")
	case f.BasePrice.GreaterThan(domain.MaxBasePrice):
		return nil, domain.ValidationError("base price must not exceed " + domain.MaxBasePrice.StringFixed(2))
	case !f.DepartureTime.After(s.now()):
		return nil, domain.ValidationError("departure must be in the future")
	case !f.ArrivalTime.After(f.DepartureTime):
		return nil, domain.ValidationError("arrival must be after departure")
	}
	return f, nil
}

// checkAirline rejects flights that name an airline which does not exist.
func checkAirline(ctx context.Context, store repository.Store, airlineID int64) error {
	_, err := store.Airlines().GetByID(ctx, airlineID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ValidationError(fmt.Sprintf("airline %d does not exist", airlineID))
	}
	return err
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.log.Warn("invalidate flights cache", zap.Error(err))
	}
}
