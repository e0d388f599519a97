package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Handler processes one presence event. Returning an error makes the consumer
// retry the same event; handlers must be idempotent.
type Handler func(ctx context.Context, evt PresenceEvent) error

// messageReader is the slice of kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	retryInitialBackoff = 100 * time.Millisecond
	retryMaxBackoff     = 5 * time.Second
)

// Consumer drives the single logical consumer group of the status event bus.
type Consumer struct {
	reader  messageReader
	handler Handler
}

func NewConsumer(reader *kafka.Reader, handler Handler) *Consumer {
	return &Consumer{reader: reader, handler: handler}
}

// Run fetches, processes and commits until the context is canceled. A commit
// acknowledges every offset up to the message, so a failed event is retried
// in place rather than skipped: fetching past it and committing a later
// message would acknowledge it for good.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logrus.Info("Status event consumer stopped")
				return nil
			}
			logrus.WithError(err).Error("Failed to fetch from status event bus")
			continue
		}

		var evt PresenceEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logrus.WithError(err).WithField("offset", msg.Offset).Warn("Dropping malformed presence event")
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logrus.WithError(err).Error("Failed to commit malformed presence event")
			}
			continue
		}

		if !c.handleWithRetry(ctx, evt) {
			// Shutdown mid-retry: leave the message uncommitted so the next
			// instance picks it up.
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logrus.WithError(err).Error("Failed to commit presence event")
		}
	}
}

// handleWithRetry runs the handler until it succeeds or the context is
// canceled. false means the event was not processed.
func (c *Consumer) handleWithRetry(ctx context.Context, evt PresenceEvent) bool {
	backoff := retryInitialBackoff
	for {
		err := c.handler(ctx, evt)
		if err == nil {
			return true
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": evt.UserID,
			"online":  evt.Online,
			"backoff": backoff,
		}).Error("Presence event handling failed, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > retryMaxBackoff {
			backoff = retryMaxBackoff
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
