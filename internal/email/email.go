package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightseats/internal/kafka"
	"go.uber.org/zap"
)

// Sender delivers passenger notifications. Delivery is a structured log line
// until an SMTP relay is configured.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, n kafka.Notification) error {
	if n.Email == "" {
		return fmt.Errorf("notification %s for booking %d has no recipient", n.Type, n.BookingID)
	}
	s.log.Info("send email",
		zap.String("notification_id", n.ID),
		zap.String("to", n.Email),
		zap.String("subject", Subject(n)),
		zap.Int64("booking_id", n.BookingID),
		zap.Int64("flight_id", n.FlightID),
		zap.String("seat", n.SeatNumber),
		zap.String("body", n.Message),
	)
	return nil
}

func Subject(n kafka.Notification) string {
	flight := n.FlightNumber
	if flight == "" {
		flight = fmt.Sprintf("#%d", n.FlightID)
	}
	switch n.Type {
	case kafka.BookingConfirmed:
		return fmt.Sprintf("Seat %s confirmed on flight %s", n.SeatNumber, flight)
	case kafka.BookingWaitlisted:
		return fmt.Sprintf("You are on the waitlist for flight %s", flight)
	case kafka.BookingCancelled:
		return fmt.Sprintf("Booking on flight %s cancelled", flight)
	case kafka.BookingPromoted:
		return fmt.Sprintf("Good news: seat %s on flight %s is confirmed", n.SeatNumber, flight)
	case kafka.BookingExpired:
		return fmt.Sprintf("Waitlist for flight %s has closed", flight)
	default:
		return fmt.Sprintf("Update on flight %s", flight)
	}
}
