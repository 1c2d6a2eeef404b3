// Package airlines manages the carriers that own flights.
package airlines

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/identity"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type AirlineUseCase interface {
	List(ctx context.Context) ([]domain.Airline, error)
	GetByID(ctx context.Context, id int64) (*domain.Airline, error)
	Create(ctx context.Context, caller identity.Caller, input AirlineInput) (*domain.Airline, error)
	Update(ctx context.Context, caller identity.Caller, id int64, input AirlineInput) (*domain.Airline, error)
	Delete(ctx context.Context, caller identity.Caller, id int64) error
}

// FlightsCache is invalidated when deleting an airline removes its flights.
type FlightsCache interface {
	InvalidateFlights(ctx context.Context) error
}

type AirlineInput struct {
	CodeIATA  string `json:"code_iata" validate:"len=2,alphanum"`
	CodeICAO  string `json:"code_icao" validate:"len=3,alphanum"`
	Name      string `json:"name" validate:"min=2,max=100"`
	Country   string `json:"country" validate:"min=2,max=60,excludesall=0123456789"`
	FleetSize int    `json:"fleet_size" validate:"min=0"`
}

type AirlineService struct {
	store    repository.Store
	cache    FlightsCache
	validate *validator.Validate
	log      *zap.Logger
}

func NewAirlineService(store repository.Store, cache FlightsCache, log *zap.Logger) *AirlineService {
	return &AirlineService{store: store, cache: cache, validate: validator.New(), log: log}
}

var _ AirlineUseCase = (*AirlineService)(nil)

func (s *AirlineService) List(ctx context.Context) ([]domain.Airline, error) {
	return s.store.Airlines().List(ctx)
}

func (s *AirlineService) GetByID(ctx context.Context, id int64) (*domain.Airline, error) {
	return s.store.Airlines().GetByID(ctx, id)
}

func (s *AirlineService) Create(ctx context.Context, caller identity.Caller, input AirlineInput) (*domain.Airline, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("create airline: %w", domain.ErrForbidden)
	}
	a, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	if err := s.store.Airlines().Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create airline: %w", err)
	}
	s.log.Info("airline created", zap.Int64("airline_id", a.ID), zap.String("iata", a.CodeIATA))
	return a, nil
}

func (s *AirlineService) Update(ctx context.Context, caller identity.Caller, id int64, input AirlineInput) (*domain.Airline, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("update airline %d: %w", id, domain.ErrForbidden)
	}
	a, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	a.ID = id
	if err := s.store.Airlines().Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update airline %d: %w", id, err)
	}
	s.log.Info("airline updated", zap.Int64("airline_id", id))
	return a, nil
}

// Delete removes the airline and its flights, unless any of them was ever booked.
func (s *AirlineService) Delete(ctx context.Context, caller identity.Caller, id int64) error {
	if !caller.Admin {
		return fmt.Errorf("delete airline %d: %w", id, domain.ErrForbidden)
	}
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Airlines().GetByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Bookings().CountByAirline(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("airline %d has %d bookings: %w", id, n, domain.ErrConflict)
		}
		return tx.Airlines().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("airline deleted", zap.Int64("airline_id", id))
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.log.Warn("invalidate flights cache", zap.Error(err))
		}
	}
	return nil
}

func (s *AirlineService) normalize(input AirlineInput) (*domain.Airline, error) {
	input.CodeIATA = strings.ToUpper(strings.TrimSpace(input.CodeIATA))
	input.CodeICAO = strings.ToUpper(strings.TrimSpace(input.CodeICAO))
	input.Name = strings.TrimSpace(input.Name)
	input.Country = strings.TrimSpace(input.Country)

	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		problems := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
		return nil, domain.ValidationError(strings.Join(problems, "; "))
	}

	return &domain.Airline{
		CodeIATA:  input.CodeIATA,
		CodeICAO:  input.CodeICAO,
		Name:      input.Name,
		Country:   input.Country,
		FleetSize: input.FleetSize,
	}, nil
}
