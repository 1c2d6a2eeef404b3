package repository

import (
	"errors"
	"testing"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewRepositories(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.NotNil(t, NewFlightRepository(pool))
	assert.NotNil(t, NewBookingRepository(pool))
	assert.NotNil(t, NewPassengerRepository(pool))
	assert.NotNil(t, NewAirlineRepository(pool))

	store := NewPGStore(pool, 0)
	assert.NotNil(t, store.Flights())
	assert.NotNil(t, store.Bookings())
	assert.NotNil(t, store.Passengers())
	assert.NotNil(t, store.Airlines())
}

func TestMapAirlineAndFlightErrors(t *testing.T) {
	a := &domain.Airline{CodeIATA: "SU", CodeICAO: "AFL"}
	assert.ErrorIs(t, mapAirlineError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintAirlineIATA}, a), domain.ErrConflict)
	assert.ErrorIs(t, mapAirlineError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintAirlineICAO}, a), domain.ErrConflict)
	assert.True(t, IsRetryable(mapAirlineError(&pgconn.PgError{Code: pgDeadlockDetected}, a)))
	assert.NoError(t, mapAirlineError(nil, a))

	f := &domain.Flight{AirlineID: 9}
	assert.ErrorIs(t, mapFlightWriteError(&pgconn.PgError{Code: pgForeignKeyViolation}, f), domain.ErrNotFound)
	boom := errors.New("boom")
	assert.ErrorIs(t, mapFlightWriteError(boom, f), boom)
}

func TestMapBookingInsertError(t *testing.T) {
	booking := &domain.Booking{FlightID: 1, PassengerID: 2, SeatNumber: "1A"}

	testCases := []struct {
		name string
		err  error
		want error
	}{
		{name: "seat constraint", err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintFlightSeat}, want: domain.ErrSeatTaken},
		{name: "passenger constraint", err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintFlightPassenger}, want: domain.ErrDuplicateBooking},
		{name: "other unique", err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "bookings_pkey"}, want: domain.ErrConflict},
		{name: "missing flight", err: &pgconn.PgError{Code: pgForeignKeyViolation}, want: domain.ErrNotFound},
		{name: "lock timeout", err: &pgconn.PgError{Code: pgLockNotAvailable}, want: ErrContention},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(mapBookingInsertError(tc.err, booking), tc.want))
		})
	}

	assert.NoError(t, mapBookingInsertError(nil, booking))
}

func TestMapPGError(t *testing.T) {
	assert.True(t, IsRetryable(mapPGError(&pgconn.PgError{Code: pgDeadlockDetected})))
	assert.True(t, IsRetryable(mapPGError(&pgconn.PgError{Code: pgSerializationFailure})))
	assert.False(t, IsRetryable(mapPGError(&pgconn.PgError{Code: "22001"})))
	assert.True(t, IsRetryable(ErrVersionConflict))
}

func TestAllowedFrom(t *testing.T) {
	assert.Equal(t, []string{"WAITLISTED"}, allowedFrom(domain.BookingStatusConfirmed))
	assert.ElementsMatch(t, []string{"WAITLISTED", "CONFIRMED"}, allowedFrom(domain.BookingStatusCancelled))
	assert.Empty(t, allowedFrom(domain.BookingStatusWaitlisted))
}
