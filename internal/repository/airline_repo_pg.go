package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const airlineColumns = `id, code_iata, code_icao, name, country, fleet_size, created_at, updated_at`

type PGAirlineRepository struct {
	db querier
}

func NewAirlineRepository(db querier) AirlineRepository {
	return &PGAirlineRepository{db: db}
}

func (r *PGAirlineRepository) List(ctx context.Context) ([]domain.Airline, error) {
	rows, err := r.db.Query(ctx, `SELECT `+airlineColumns+` FROM airlines ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	airlines := make([]domain.Airline, 0)
	for rows.Next() {
		a, err := scanAirline(rows)
		if err != nil {
			return nil, err
		}
		airlines = append(airlines, *a)
	}
	return airlines, rows.Err()
}

func (r *PGAirlineRepository) GetByID(ctx context.Context, id int64) (*domain.Airline, error) {
	a, err := scanAirline(r.db.QueryRow(ctx, `SELECT `+airlineColumns+` FROM airlines WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundError("airline", id)
	}
	return a, err
}

func (r *PGAirlineRepository) Create(ctx context.Context, a *domain.Airline) error {
	err := r.db.QueryRow(ctx, `INSERT INTO airlines (code_iata, code_icao, name, country, fleet_size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		a.CodeIATA, a.CodeICAO, a.Name, a.Country, a.FleetSize).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapAirlineError(err, a)
}

func (r *PGAirlineRepository) Update(ctx context.Context, a *domain.Airline) error {
	err := r.db.QueryRow(ctx, `UPDATE airlines
		SET code_iata=$1, code_icao=$2, name=$3, country=$4, fleet_size=$5, updated_at=now()
		WHERE id=$6
		RETURNING created_at, updated_at`,
		a.CodeIATA, a.CodeICAO, a.Name, a.Country, a.FleetSize, a.ID).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundError("airline", a.ID)
	}
	return mapAirlineError(err, a)
}

// Delete relies on ON DELETE CASCADE for flights; bookings reference flights
// without cascade, so a booked flight blocks the delete.
func (r *PGAirlineRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM airlines WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("airline %d has booked flights: %w", id, domain.ErrConflict)
		}
		return mapPGError(err)
	}
	if res.RowsAffected() == 0 {
		return domain.NotFoundError("airline", id)
	}
	return nil
}

func mapAirlineError(err error, a *domain.Airline) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case constraintAirlineIATA:
			return fmt.Errorf("IATA code %s: %w", a.CodeIATA, domain.ErrConflict)
		case constraintAirlineICAO:
			return fmt.Errorf("ICAO code %s: %w", a.CodeICAO, domain.ErrConflict)
		}
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	}
	return mapPGError(err)
}

func scanAirline(row scanner) (*domain.Airline, error) {
	var a domain.Airline
	if err := row.Scan(&a.ID, &a.CodeIATA, &a.CodeICAO, &a.Name, &a.Country, &a.FleetSize, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

const (
	constraintAirlineIATA = "uk_airline_iata"
	constraintAirlineICAO = "uk_airline_icao"
)

var _ AirlineRepository = (*PGAirlineRepository)(nil)
