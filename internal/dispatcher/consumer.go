package dispatcher

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/blockedby/teamsheet/internal/logger"
)

// dispatch stream layout
const (
	DispatchStream   = "messages"
	DispatchConsumer = "mailer"
)

// Subscriber is the NATS subscription surface the consumer needs.
type Subscriber interface {
	Subscribe(ctx context.Context, stream, consumer, subject string, handler func([]byte) error) error
}

// Consumer feeds dispatch jobs from NATS into a processor.
type Consumer struct {
	client    Subscriber
	processor JobProcessor
	log       *logger.Logger
}

// NewConsumer creates a new NATS consumer
func NewConsumer(client Subscriber, processor JobProcessor, log *logger.Logger) *Consumer {
	return &Consumer{
		client:    client,
		processor: processor,
		log:       log,
	}
}

// Start subscribes to messages.dispatch and starts processing
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Msg("starting dispatch consumer")
	return c.client.Subscribe(ctx, DispatchStream, DispatchConsumer, DispatchSubject, c.handleMessage)
}

// handleMessage processes a single job. A returned error naks the message.
func (c *Consumer) handleMessage(data []byte) error {
	var job DispatchJob
	if err := json.Unmarshal(data, &job); err != nil {
		c.log.Error().Err(err).Msg("invalid dispatch job, skipping")
		return nil // ack poison messages
	}

	log := c.log.WithRequestID(job.RequestID)
	log.Debug().Str("message_id", job.MessageID.String()).Msg("received dispatch job")

	if err := c.processor.Process(context.Background(), job); err != nil {
		if errors.Is(err, ErrProcessingInFlight) {
			log.Debug().Str("message_id", job.MessageID.String()).Msg("message busy, redelivering later")
		} else {
			log.Error().Err(err).Str("message_id", job.MessageID.String()).Msg("failed to process dispatch job")
		}
		return err
	}

	return nil
}
