package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusWaitlisted BookingStatus = "WAITLISTED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

var seatNumberPattern = regexp.MustCompile(`^[A-Z0-9]{1,5}$`)

type Booking struct {
	ID          int64
	FlightID    int64
	PassengerID int64
	SeatNumber  string
	Status      BookingStatus
	Price       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b *Booking) IsActive() bool {
	return b.Status != BookingStatusCancelled
}

// CanTransition lists the only legal lifecycle moves.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch s {
	case BookingStatusWaitlisted:
		return to == BookingStatusConfirmed || to == BookingStatusCancelled
	case BookingStatusConfirmed:
		return to == BookingStatusCancelled
	default:
		return false
	}
}

// NormalizeSeatNumber trims and upper-cases a seat label and checks its shape.
func NormalizeSeatNumber(seat string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(seat))
	if !seatNumberPattern.MatchString(normalized) {
		return "", ValidationError("seat number must be 1-5 alphanumeric characters")
	}
	return normalized, nil
}
