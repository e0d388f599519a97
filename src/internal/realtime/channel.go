package realtime

import (
	"encoding/json"
	"time"

	"chathub-presence-svc/src/internal/config"
	"chathub-presence-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Channel is the addressable push mechanism the broadcaster fans out on.
// Gateway instances bind queues to the exchange and deliver to sockets.
type Channel interface {
	PushToUser(userID string, payload interface{}) error
	PushToTopic(topic string, payload interface{}) error
}

type amqpChannel struct {
	channel  *amqp.Channel
	exchange string
}

func NewChannel(channel *amqp.Channel, cfg *config.QueueConfig) Channel {
	return &amqpChannel{
		channel:  channel,
		exchange: cfg.RabbitMQ.Exchange,
	}
}

func (c *amqpChannel) PushToUser(userID string, payload interface{}) error {
	return c.publish("user."+userID, payload)
}

func (c *amqpChannel) PushToTopic(topic string, payload interface{}) error {
	return c.publish("topic."+topic, payload)
}

func (c *amqpChannel) publish(routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = c.channel.Publish(
		c.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		logrus.WithError(err).WithField("routing_key", routingKey).Error("Failed to publish realtime push")
		return models.ErrRealtimePublish
	}

	logrus.WithField("routing_key", routingKey).Debug("Realtime push published")
	return nil
}
