package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const flightColumns = `id, airline_id, flight_number, origin, destination, departure_time, arrival_time, capacity, booked_seats, base_price::text, version, created_at, updated_at`

type PGFlightRepository struct {
	db querier
}

func NewFlightRepository(db querier) FlightRepository {
	return &PGFlightRepository{db: db}
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundError("flight", id)
	}
	return f, err
}

func (r *PGFlightRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundError("flight", id)
	}
	if err != nil {
		return nil, mapPGError(err)
	}
	return f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, f *domain.Flight) error {
	err := r.db.QueryRow(ctx, `INSERT INTO flights (airline_id, flight_number, origin, destination, departure_time, arrival_time, capacity, booked_seats, base_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric)
		RETURNING id, version, created_at, updated_at`,
		f.AirlineID, f.FlightNumber, f.Origin, f.Destination, f.DepartureTime, f.ArrivalTime, f.Capacity, f.BookedSeats, f.BasePrice.String()).
		Scan(&f.ID, &f.Version, &f.CreatedAt, &f.UpdatedAt)
	return mapFlightWriteError(err, f)
}

func (r *PGFlightRepository) Update(ctx context.Context, f *domain.Flight) error {
	err := r.db.QueryRow(ctx, `UPDATE flights
		SET airline_id=$1, flight_number=$2, origin=$3, destination=$4, departure_time=$5, arrival_time=$6, capacity=$7, base_price=$8::numeric, version=version+1, updated_at=now()
		WHERE id=$9
		RETURNING version, updated_at`,
		f.AirlineID, f.FlightNumber, f.Origin, f.Destination, f.DepartureTime, f.ArrivalTime, f.Capacity, f.BasePrice.String(), f.ID).
		Scan(&f.Version, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundError("flight", f.ID)
	}
	return mapFlightWriteError(err, f)
}

// mapFlightWriteError reports a dangling airline_id as a missing airline.
func mapFlightWriteError(err error, f *domain.Flight) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return domain.NotFoundError("airline", f.AirlineID)
	}
	return err
}

func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.NotFoundError("flight", id)
	}
	return nil
}

func (r *PGFlightRepository) SetBookedSeats(ctx context.Context, f *domain.Flight) error {
	res, err := r.db.Exec(ctx, `UPDATE flights SET booked_seats=$1, version=version+1, updated_at=now() WHERE id=$2 AND version=$3`, f.BookedSeats, f.ID, f.Version)
	if err != nil {
		return mapPGError(err)
	}
	if res.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	f.Version++
	return nil
}

func scanFlight(row scanner) (*domain.Flight, error) {
	var (
		f     domain.Flight
		price string
	)
	if err := row.Scan(&f.ID, &f.AirlineID, &f.FlightNumber, &f.Origin, &f.Destination, &f.DepartureTime, &f.ArrivalTime, &f.Capacity, &f.BookedSeats, &price, &f.Version, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	base, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	f.BasePrice = base
	return &f, nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
