package clients

import (
	"time"

	"chathub-presence-svc/src/internal/config"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// NewKafkaWriter creates a writer for the status event bus. Messages are
// keyed by userId and the hash balancer pins each key to one partition, which
// is what gives per-user ordering.
func NewKafkaWriter(cfg *config.BusConfig) *kafka.Writer {
	log.WithField("topic", cfg.Topic).Info("Creating Kafka writer for status event bus")
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: time.Duration(cfg.BatchTimeout) * time.Millisecond,
	}
}

// NewKafkaReader creates a consumer-group reader for the status event bus.
// Commits are issued explicitly by the consumer loop after processing, so
// redelivery covers any partially processed event.
func NewKafkaReader(cfg *config.BusConfig) *kafka.Reader {
	log.WithFields(logrus.Fields{
		"topic": cfg.Topic,
		"group": cfg.ConsumerGroup,
	}).Info("Creating Kafka reader for status event bus")
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Duration(cfg.MaxWait) * time.Millisecond,
	})
}
