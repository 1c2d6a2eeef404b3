package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	bookingColumns = `b.id, b.flight_id, b.passenger_id, b.seat_number, b.status, b.price::text, b.created_at, b.updated_at`

	constraintFlightSeat      = "uk_booking_flight_seat"
	constraintFlightPassenger = "uk_booking_flight_passenger"
)

type PGBookingRepository struct {
	db querier
}

func NewBookingRepository(db querier) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	err := r.db.QueryRow(ctx, `INSERT INTO bookings (flight_id, passenger_id, seat_number, status, price)
		VALUES ($1, $2, $3, $4, $5::numeric)
		RETURNING id, created_at, updated_at`,
		booking.FlightID, booking.PassengerID, booking.SeatNumber, booking.Status, booking.Price.StringFixed(2)).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	return mapBookingInsertError(err, booking)
}

// mapBookingInsertError turns constraint violations into domain errors.
func mapBookingInsertError(err error, booking *domain.Booking) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintFlightSeat:
				return fmt.Errorf("seat %s on flight %d: %w", booking.SeatNumber, booking.FlightID, domain.ErrSeatTaken)
			case constraintFlightPassenger:
				return fmt.Errorf("passenger %d on flight %d: %w", booking.PassengerID, booking.FlightID, domain.ErrDuplicateBooking)
			default:
				return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
			}
		case pgForeignKeyViolation:
			return fmt.Errorf("flight %d or passenger %d: %w", booking.FlightID, booking.PassengerID, domain.ErrNotFound)
		}
	}
	return mapPGError(err)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundError("booking", id)
	}
	return b, err
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	from := allowedFrom(status)
	if len(from) > 0 {
		b, err := scanBooking(r.db.QueryRow(ctx, `UPDATE bookings b SET status=$1, updated_at=now()
			WHERE b.id=$2 AND b.status = ANY($3::text[])
			RETURNING `+bookingColumns, status, id, from))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, mapPGError(err)
		}
	}

	var current domain.BookingStatus
	if err := r.db.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundError("booking", id)
		}
		return nil, err
	}
	if current == domain.BookingStatusCancelled {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrAlreadyCancelled)
	}
	return nil, fmt.Errorf("booking %d %s -> %s: %w", id, current, status, domain.ErrInvalidTransition)
}

func (r *PGBookingRepository) ListByFlight(ctx context.Context, flightID int64) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.flight_id=$1 ORDER BY b.created_at, b.id`, flightID)
}

func (r *PGBookingRepository) ListByPassenger(ctx context.Context, passengerID int64) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b
		JOIN flights f ON f.id = b.flight_id
		WHERE b.passenger_id=$1
		ORDER BY f.departure_time, b.created_at, b.id`, passengerID)
}

func (r *PGBookingRepository) ListWaitlisted(ctx context.Context, flightID int64) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b
		WHERE b.flight_id=$1 AND b.status=$2
		ORDER BY b.created_at, b.id`, flightID, domain.BookingStatusWaitlisted)
}

func (r *PGBookingRepository) ListWaitlistedDeparted(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b
		JOIN flights f ON f.id = b.flight_id
		WHERE b.status=$1 AND f.departure_time < $2
		ORDER BY b.flight_id, b.created_at, b.id`, domain.BookingStatusWaitlisted, now)
}

func (r *PGBookingRepository) HasActiveForPassenger(ctx context.Context, flightID, passengerID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE flight_id=$1 AND passenger_id=$2 AND status <> $3)`,
		flightID, passengerID, domain.BookingStatusCancelled).Scan(&exists)
	return exists, err
}

func (r *PGBookingRepository) IsSeatTaken(ctx context.Context, flightID int64, seatNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE flight_id=$1 AND upper(seat_number)=upper($2) AND status <> $3)`,
		flightID, seatNumber, domain.BookingStatusCancelled).Scan(&exists)
	return exists, err
}

func (r *PGBookingRepository) CountByFlight(ctx context.Context, flightID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE flight_id=$1`, flightID).Scan(&count)
	return count, err
}

func (r *PGBookingRepository) CountByAirline(ctx context.Context, airlineID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings b
		JOIN flights f ON f.id = b.flight_id
		WHERE f.airline_id=$1`, airlineID).Scan(&count)
	return count, err
}

func (r *PGBookingRepository) List(ctx context.Context, limit, offset int) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings b
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *PGBookingRepository) list(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row scanner) (*domain.Booking, error) {
	var (
		b     domain.Booking
		price string
	)
	if err := row.Scan(&b.ID, &b.FlightID, &b.PassengerID, &b.SeatNumber, &b.Status, &price, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	b.Price = p
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
