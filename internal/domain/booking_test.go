package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSeatNumber(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "lower case is upper-cased", input: "12a", want: "12A"},
		{name: "surrounding spaces trimmed", input: "  3C ", want: "3C"},
		{name: "five characters allowed", input: "ab123", want: "AB123"},
		{name: "too long", input: "ABC123", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
		{name: "punctuation", input: "1-A", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeSeatNumber(tc.input)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBookingStatus_CanTransition(t *testing.T) {
	assert.True(t, BookingStatusWaitlisted.CanTransition(BookingStatusConfirmed))
	assert.True(t, BookingStatusWaitlisted.CanTransition(BookingStatusCancelled))
	assert.True(t, BookingStatusConfirmed.CanTransition(BookingStatusCancelled))
	assert.False(t, BookingStatusConfirmed.CanTransition(BookingStatusWaitlisted))
	assert.False(t, BookingStatusCancelled.CanTransition(BookingStatusConfirmed))
	assert.False(t, BookingStatusCancelled.CanTransition(BookingStatusWaitlisted))
}

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(ErrSeatTaken, ErrConflict))
	assert.True(t, errors.Is(ErrDuplicateBooking, ErrConflict))
	assert.True(t, errors.Is(ErrAlreadyCancelled, ErrInvalidTransition))
	assert.False(t, errors.Is(ErrOverbooking, ErrConflict))
	assert.True(t, errors.Is(NotFoundError("flight", 7), ErrNotFound))
}
