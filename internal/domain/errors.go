package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateBooking  = fmt.Errorf("%w: passenger already has a booking for this flight", ErrConflict)
	ErrSeatTaken         = fmt.Errorf("%w: seat is already taken", ErrConflict)
	ErrDepartedFlight    = errors.New("flight has already departed")
	ErrOverbooking       = errors.New("overbooking limit reached")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrAlreadyCancelled  = fmt.Errorf("%w: booking already cancelled", ErrInvalidTransition)
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
)

func ValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func NotFoundError(resource string, id int64) error {
	return fmt.Errorf("%s %d: %w", resource, id, ErrNotFound)
}
