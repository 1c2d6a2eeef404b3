package domain

import "time"

type Passenger struct {
	ID            int64
	FirstName     string
	LastName      string
	Email         string
	LoyaltyPoints int
	CreatedAt     time.Time
}

// ClampPoints keeps a loyalty balance non-negative.
func ClampPoints(points int) int {
	if points < 0 {
		return 0
	}
	return points
}

const (
	MaxNameLen  = 50
	MaxEmailLen = 100
)
