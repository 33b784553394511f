// Package events publishes domain events to downstream consumers.
package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/pkg/logger"
)

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is a Kafka-backed EventPublisher. Messages are keyed by user id so the
// events of one user stay ordered within a partition.
type KafkaProducer struct {
	writer  MessageWriter
	metrics *monitoring.Metrics
	logger  logger.Logger
}

// NewKafkaProducer creates a producer writing to cfg.Topic.
func NewKafkaProducer(cfg config.KafkaConfig, metrics *monitoring.Metrics, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return NewKafkaProducerWithWriter(writer, metrics, log)
}

// NewKafkaProducerWithWriter creates a producer on top of an existing writer.
func NewKafkaProducerWithWriter(w MessageWriter, metrics *monitoring.Metrics, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer:  w,
		metrics: metrics,
		logger:  log.WithComponent("KafkaProducer"),
	}
}

// Publish sends event to the topic.
func (p *KafkaProducer) Publish(ctx context.Context, event models.Event) error {
	bytes, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal event", err)
		p.metrics.RecordEvent(event.Type, err)
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: bytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	p.metrics.RecordEvent(event.Type, err)
	if err != nil {
		p.logger.Error(ctx, "failed to write message to Kafka", err,
			logger.String("event_type", string(event.Type)),
			logger.String("event_id", event.ID),
		)
	}
	return err
}

// Close closes the underlying Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

var _ service.EventPublisher = (*KafkaProducer)(nil)
