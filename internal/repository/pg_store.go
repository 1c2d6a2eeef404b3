package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type PGStore struct {
	pool        *pgxpool.Pool
	db          querier
	inTx        bool
	lockTimeout time.Duration
}

func NewPGStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PGStore {
	return &PGStore{pool: pool, db: pool, lockTimeout: lockTimeout}
}

func (s *PGStore) Flights() FlightRepository {
	return &PGFlightRepository{db: s.db}
}

func (s *PGStore) Bookings() BookingRepository {
	return &PGBookingRepository{db: s.db}
}

func (s *PGStore) Passengers() PassengerRepository {
	return &PGPassengerRepository{db: s.db}
}

func (s *PGStore) Airlines() AirlineRepository {
	return &PGAirlineRepository{db: s.db}
}

func (s *PGStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapPGError(err)
	}
	defer tx.Rollback(ctx)

	if s.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return mapPGError(err)
		}
	}

	if err := fn(&PGStore{pool: s.pool, db: tx, inTx: true, lockTimeout: s.lockTimeout}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPGError(err)
	}
	return nil
}

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// mapPGError translates contention-related SQLSTATEs into ErrContention.
func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrContention, pgErr.Message)
		}
	}
	return err
}

var _ Store = (*PGStore)(nil)
