package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
)

var (
	// ErrVersionConflict means the flight row changed since it was read.
	ErrVersionConflict = errors.New("flight version conflict")
	// ErrContention covers lock timeouts, serialization failures and deadlocks.
	ErrContention = errors.New("storage contention")
)

// IsRetryable reports whether an operation failed only because of concurrent writers.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrContention)
}

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	// GetForUpdate reads the flight and, where the backend supports it, locks the row
	// until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Update(ctx context.Context, flight *domain.Flight) error
	Delete(ctx context.Context, id int64) error
	// SetBookedSeats persists flight.BookedSeats if flight.Version is still current
	// and bumps flight.Version on success.
	SetBookedSeats(ctx context.Context, flight *domain.Flight) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error)
	ListByFlight(ctx context.Context, flightID int64) ([]domain.Booking, error)
	ListByPassenger(ctx context.Context, passengerID int64) ([]domain.Booking, error)
	// ListWaitlisted returns the flight's WAITLISTED bookings, oldest first.
	ListWaitlisted(ctx context.Context, flightID int64) ([]domain.Booking, error)
	ListWaitlistedDeparted(ctx context.Context, now time.Time) ([]domain.Booking, error)
	HasActiveForPassenger(ctx context.Context, flightID, passengerID int64) (bool, error)
	IsSeatTaken(ctx context.Context, flightID int64, seatNumber string) (bool, error)
	CountByFlight(ctx context.Context, flightID int64) (int, error)
	// CountByAirline counts bookings of any status on the airline's flights.
	CountByAirline(ctx context.Context, airlineID int64) (int, error)
	// List pages through every booking, newest first.
	List(ctx context.Context, limit, offset int) ([]domain.Booking, error)
}

type PassengerRepository interface {
	Create(ctx context.Context, passenger *domain.Passenger) error
	GetByID(ctx context.Context, id int64) (*domain.Passenger, error)
	List(ctx context.Context) ([]domain.Passenger, error)
	// Update writes name and email. The loyalty balance only moves through AdjustLoyalty.
	Update(ctx context.Context, passenger *domain.Passenger) error
	// AdjustLoyalty adds delta to the balance, flooring the result at zero.
	AdjustLoyalty(ctx context.Context, id int64, delta int) (int, error)
}

type AirlineRepository interface {
	List(ctx context.Context) ([]domain.Airline, error)
	GetByID(ctx context.Context, id int64) (*domain.Airline, error)
	Create(ctx context.Context, airline *domain.Airline) error
	Update(ctx context.Context, airline *domain.Airline) error
	// Delete removes the airline together with its flights. Flights that still
	// carry bookings make it fail with ErrConflict.
	Delete(ctx context.Context, id int64) error
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Flights() FlightRepository
	Bookings() BookingRepository
	Passengers() PassengerRepository
	Airlines() AirlineRepository
	// InTx runs fn against a Store bound to a single transaction. Nested calls
	// join the outer transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// allowedFrom lists the statuses a booking may leave to reach status.
func allowedFrom(status domain.BookingStatus) []string {
	switch status {
	case domain.BookingStatusConfirmed:
		return []string{string(domain.BookingStatusWaitlisted)}
	case domain.BookingStatusCancelled:
		return []string{string(domain.BookingStatusWaitlisted), string(domain.BookingStatusConfirmed)}
	default:
		return nil
	}
}
