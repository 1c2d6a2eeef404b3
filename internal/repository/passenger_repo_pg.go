package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type PGPassengerRepository struct {
	db querier
}

func NewPassengerRepository(db querier) PassengerRepository {
	return &PGPassengerRepository{db: db}
}

func (r *PGPassengerRepository) Create(ctx context.Context, p *domain.Passenger) error {
	err := r.db.QueryRow(ctx, `INSERT INTO passengers (first_name, last_name, email, loyalty_points)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, p.FirstName, p.LastName, p.Email, domain.ClampPoints(p.LoyaltyPoints)).
		Scan(&p.ID, &p.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("passenger email %s: %w", p.Email, domain.ErrConflict)
	}
	return err
}

func (r *PGPassengerRepository) GetByID(ctx context.Context, id int64) (*domain.Passenger, error) {
	var p domain.Passenger
	err := r.db.QueryRow(ctx, `SELECT id, first_name, last_name, email, loyalty_points, created_at FROM passengers WHERE id=$1`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.LoyaltyPoints, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundError("passenger", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGPassengerRepository) List(ctx context.Context) ([]domain.Passenger, error) {
	rows, err := r.db.Query(ctx, `SELECT id, first_name, last_name, email, loyalty_points, created_at FROM passengers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	passengers := make([]domain.Passenger, 0)
	for rows.Next() {
		var p domain.Passenger
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.LoyaltyPoints, &p.CreatedAt); err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

func (r *PGPassengerRepository) Update(ctx context.Context, p *domain.Passenger) error {
	err := r.db.QueryRow(ctx, `UPDATE passengers SET first_name=$1, last_name=$2, email=$3 WHERE id=$4
		RETURNING loyalty_points, created_at`, p.FirstName, p.LastName, p.Email, p.ID).
		Scan(&p.LoyaltyPoints, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundError("passenger", p.ID)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("passenger email %s: %w", p.Email, domain.ErrConflict)
	}
	return err
}

func (r *PGPassengerRepository) AdjustLoyalty(ctx context.Context, id int64, delta int) (int, error) {
	var balance int
	err := r.db.QueryRow(ctx, `UPDATE passengers SET loyalty_points = GREATEST(loyalty_points + $1, 0) WHERE id=$2 RETURNING loyalty_points`, delta, id).
		Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.NotFoundError("passenger", id)
	}
	if err != nil {
		return 0, mapPGError(err)
	}
	return balance, nil
}

var _ PassengerRepository = (*PGPassengerRepository)(nil)
