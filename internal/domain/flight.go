package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinCapacity = 50
	MaxCapacity = 400

	MaxFlightNumberLen = 10
	MaxAirportLen      = 60
)

// MaxBasePrice keeps the top price tier (base x 1.50) within NUMERIC(10,2).
var MaxBasePrice = decimal.RequireFromString("66666666.66")

type Flight struct {
	ID            int64
	AirlineID     int64
	FlightNumber  string
	Origin        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	Capacity      int
	BookedSeats   int
	BasePrice     decimal.Decimal
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OccupancyRatio is bookedSeats / capacity at the moment of the call.
func (f *Flight) OccupancyRatio() float64 {
	if f.Capacity <= 0 {
		return 0
	}
	return float64(f.BookedSeats) / float64(f.Capacity)
}

// HasRoom reports whether a new booking would be CONFIRMED.
func (f *Flight) HasRoom() bool {
	return f.BookedSeats < f.Capacity
}

// OverbookingCeiling is ceil(capacity * 1.10).
func (f *Flight) OverbookingCeiling() int {
	return (f.Capacity*11 + 9) / 10
}

func (f *Flight) WithinOverbookingCeiling() bool {
	return f.BookedSeats < f.OverbookingCeiling()
}

func (f *Flight) IncrementBooked() {
	f.BookedSeats++
}

// DecrementBooked never goes below zero.
func (f *Flight) DecrementBooked() {
	if f.BookedSeats > 0 {
		f.BookedSeats--
	}
}

func (f *Flight) HasDeparted(now time.Time) bool {
	return f.DepartureTime.Before(now)
}
