package kafka

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type NotificationType string

const (
	BookingConfirmed  NotificationType = "booking_confirmed"
	BookingWaitlisted NotificationType = "booking_waitlisted"
	BookingCancelled  NotificationType = "booking_cancelled"
	BookingPromoted   NotificationType = "booking_promoted"
	BookingExpired    NotificationType = "booking_expired"
)

// Notification is the message delivered to passengers and to the booking
// events stream.
type Notification struct {
	ID           string           `json:"id"`
	Type         NotificationType `json:"type"`
	BookingID    int64            `json:"booking_id"`
	FlightID     int64            `json:"flight_id"`
	FlightNumber string           `json:"flight_number,omitempty"`
	PassengerID  int64            `json:"passenger_id"`
	Email        string           `json:"email"`
	SeatNumber   string           `json:"seat_number"`
	Status       string           `json:"status"`
	Amount       decimal.Decimal  `json:"amount"`
	Message      string           `json:"message"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Notifier publishes notifications through a circuit breaker so a dead broker
// fails fast instead of stalling every caller for the full timeout.
type Notifier struct {
	publisher          Publisher
	notificationsTopic string
	eventsTopic        string
	breaker            *gobreaker.CircuitBreaker
	log                *zap.Logger
}

type NotifierOption func(*Notifier)

func WithNotificationsTopic(topic string) NotifierOption {
	return func(n *Notifier) { n.notificationsTopic = topic }
}

func WithEventsTopic(topic string) NotifierOption {
	return func(n *Notifier) { n.eventsTopic = topic }
}

func NewNotifier(publisher Publisher, log *zap.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		publisher:          publisher,
		notificationsTopic: "notifications",
		log:                log,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-notifier",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return n
}

func (n *Notifier) Notify(ctx context.Context, msg Notification) error {
	key := strconv.FormatInt(msg.BookingID, 10)
	_, err := n.breaker.Execute(func() (any, error) {
		if n.eventsTopic != "" {
			if err := n.publisher.Publish(ctx, n.eventsTopic, key, msg); err != nil {
				return nil, err
			}
		}
		return nil, n.publisher.Publish(ctx, n.notificationsTopic, key, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		n.log.Debug("notification dropped by open breaker", zap.Int64("booking_id", msg.BookingID))
	}
	return err
}
