package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/events"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler processes one decoded order event.
type Handler func(ctx context.Context, e events.Event) error

// Consumer reads order events from a topic until its context ends.
type Consumer struct {
	reader messageReader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		logger: logger,
	}
}

// Run blocks until ctx is cancelled. Undecodable messages and handler
// failures are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer c.reader.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("kafka read failed", zap.Error(err))
			continue
		}

		e, err := events.Decode(msg.Value)
		if err != nil {
			c.logger.Warn("skipping undecodable event",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		if err := handle(ctx, e); err != nil {
			c.logger.Error("event handler failed",
				zap.String("order_id", e.OrderID),
				zap.String("event_type", string(e.Type)),
				zap.Error(err),
			)
		}
	}
}
