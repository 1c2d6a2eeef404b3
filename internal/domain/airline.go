package domain

import "time"

// Airline owns flights. IATA and ICAO codes are unique across airlines.
type Airline struct {
	ID        int64
	CodeIATA  string
	CodeICAO  string
	Name      string
	Country   string
	FleetSize int
	CreatedAt time.Time
	UpdatedAt time.Time
}
