package events

import (
	"context"
	"encoding/json"
	"time"

	"chathub-presence-svc/src/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// PresenceEvent is the unit carried on the status event bus. Immutable once
// published; the partition key is the user id, so all of one user's events
// land on one partition in emission order.
type PresenceEvent struct {
	UserID    string    `json:"userId"`
	Online    bool      `json:"online"`
	EmittedAt time.Time `json:"emittedAt"`
}

// Publisher appends presence transitions to the event bus.
type Publisher interface {
	PublishStatus(ctx context.Context, userID string, online bool) error
}

// messageWriter is the slice of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaPublisher struct {
	writer messageWriter
}

func NewPublisher(writer *kafka.Writer) Publisher {
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) PublishStatus(ctx context.Context, userID string, online bool) error {
	evt := PresenceEvent{
		UserID:    userID,
		Online:    online,
		EmittedAt: time.Now(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(userID),
		Value: payload,
	})
	if err != nil {
		// Presence is cheap to re-derive from the session store, so callers
		// may retry at low volume or just drop.
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"online":  online,
		}).Error("Failed to publish presence event")
		return models.ErrEventPublish
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"online":  online,
	}).Debug("Presence event published")
	return nil
}
