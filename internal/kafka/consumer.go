package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	log    *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, log *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume decodes notifications until ctx is cancelled. Undecodable messages
// and handler failures are logged and skipped so one bad record cannot stall
// the group.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, Notification) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		var n Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			c.log.Warn("skip undecodable notification",
				zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}

		if err := handler(ctx, n); err != nil {
			c.log.Error("handle notification",
				zap.String("type", string(n.Type)), zap.Int64("booking_id", n.BookingID), zap.Error(err))
		}
	}
}
