// Package loyalty keeps passenger point balances. Balances never go below zero.
package loyalty

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/identity"
	"github.com/Domenick1991/flightseats/internal/pricing"
	"github.com/Domenick1991/flightseats/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger applies point changes through whichever PassengerRepository it is
// given, so callers decide the transaction.
type Ledger struct {
	log *zap.Logger
}

func NewLedger(log *zap.Logger) *Ledger {
	return &Ledger{log: log}
}

func (l *Ledger) Adjust(ctx context.Context, passengers repository.PassengerRepository, passengerID int64, delta int) (int, error) {
	balance, err := passengers.AdjustLoyalty(ctx, passengerID, delta)
	if err != nil {
		return 0, fmt.Errorf("adjust loyalty of passenger %d: %w", passengerID, err)
	}
	l.log.Debug("loyalty adjusted",
		zap.Int64("passenger_id", passengerID), zap.Int("delta", delta), zap.Int("balance", balance))
	return balance, nil
}

// Award credits the points earned on price and returns them with the new balance.
func (l *Ledger) Award(ctx context.Context, passengers repository.PassengerRepository, passengerID int64, price decimal.Decimal) (int, int, error) {
	points := pricing.LoyaltyPoints(price)
	balance, err := l.Adjust(ctx, passengers, passengerID, points)
	return points, balance, err
}

// Clawback debits the points earned on price. The balance floors at zero.
func (l *Ledger) Clawback(ctx context.Context, passengers repository.PassengerRepository, passengerID int64, price decimal.Decimal) (int, int, error) {
	points := pricing.LoyaltyPoints(price)
	balance, err := l.Adjust(ctx, passengers, passengerID, -points)
	return points, balance, err
}

type PassengerInput struct {
	FirstName string
	LastName  string
	Email     string
}

type LoyaltyUseCase interface {
	Register(ctx context.Context, input PassengerInput) (*domain.Passenger, error)
	List(ctx context.Context, caller identity.Caller) ([]domain.Passenger, error)
	Get(ctx context.Context, caller identity.Caller, passengerID int64) (*domain.Passenger, error)
	Update(ctx context.Context, caller identity.Caller, passengerID int64, input PassengerInput) (*domain.Passenger, error)
	Balance(ctx context.Context, caller identity.Caller, passengerID int64) (int, error)
}

type Service struct {
	passengers repository.PassengerRepository
	validate   *validator.Validate
	log        *zap.Logger
}

func NewService(passengers repository.PassengerRepository, log *zap.Logger) *Service {
	return &Service{passengers: passengers, validate: validator.New(), log: log}
}

var _ LoyaltyUseCase = (*Service)(nil)

func (s *Service) Register(ctx context.Context, input PassengerInput) (*domain.Passenger, error) {
	p, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	if err := s.passengers.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("register passenger: %w", err)
	}
	s.log.Info("passenger registered", zap.Int64("passenger_id", p.ID))
	return p, nil
}

func (s *Service) List(ctx context.Context, caller identity.Caller) ([]domain.Passenger, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("list passengers: %w", domain.ErrForbidden)
	}
	return s.passengers.List(ctx)
}

func (s *Service) Get(ctx context.Context, caller identity.Caller, passengerID int64) (*domain.Passenger, error) {
	if !caller.CanAccess(passengerID) {
		return nil, domain.ErrForbidden
	}
	return s.passengers.GetByID(ctx, passengerID)
}

// Update changes contact details only. Loyalty points move through the Ledger.
func (s *Service) Update(ctx context.Context, caller identity.Caller, passengerID int64, input PassengerInput) (*domain.Passenger, error) {
	if !caller.CanAccess(passengerID) {
		return nil, domain.ErrForbidden
	}
	p, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	current, err := s.passengers.GetByID(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	if current.FirstName == p.FirstName && current.LastName == p.LastName && current.Email == p.Email {
		return nil, domain.ValidationError("no changes")
	}

	p.ID = passengerID
	if err := s.passengers.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update passenger %d: %w", passengerID, err)
	}
	s.log.Info("passenger updated", zap.Int64("passenger_id", passengerID))
	return p, nil
}

func (s *Service) Balance(ctx context.Context, caller identity.Caller, passengerID int64) (int, error) {
	if !caller.CanAccess(passengerID) {
		return 0, domain.ErrForbidden
	}
	p, err := s.passengers.GetByID(ctx, passengerID)
	if err != nil {
		return 0, err
	}
	return p.LoyaltyPoints, nil
}

func (s *Service) normalize(input PassengerInput) (*domain.Passenger, error) {
	p := &domain.Passenger{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
	}
	if p.FirstName == "" || p.LastName == "" {
		return nil, domain.ValidationError("first and last name are required")
	}
	if utf8.RuneCountInString(p.FirstName) > domain.MaxNameLen || utf8.RuneCountInString(p.LastName) > domain.MaxNameLen {
		return nil, domain.ValidationError(fmt.Sprintf("names must be at most %d characters", domain.MaxNameLen))
	}
	if err := s.validate.Var(p.Email, fmt.Sprintf("required,email,max=%d", domain.MaxEmailLen)); err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("invalid email %q", input.Email))
	}
	return p, nil
}
