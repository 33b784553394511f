package events

import (
	"context"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/pkg/logger"
)

// LogPublisher writes events to the service log. It is used when no broker is configured.
type LogPublisher struct {
	metrics *monitoring.Metrics
	logger  logger.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(metrics *monitoring.Metrics, log logger.Logger) *LogPublisher {
	return &LogPublisher{metrics: metrics, logger: log.WithComponent("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event models.Event) error {
	fields := []logger.Field{
		logger.String("event_id", event.ID),
		logger.String("event_type", string(event.Type)),
		logger.String("user_id", event.UserID),
	}
	if event.ResourceID != "" {
		fields = append(fields, logger.String("resource_id", event.ResourceID))
	}
	for k, v := range event.Payload {
		fields = append(fields, logger.String(k, v))
	}
	p.logger.Info(ctx, "Domain event", fields...)
	p.metrics.RecordEvent(event.Type, nil)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NewPublisher picks the Kafka producer when brokers are configured and the log
// publisher otherwise.
func NewPublisher(cfg config.KafkaConfig, metrics *monitoring.Metrics, log logger.Logger) service.EventPublisher {
	if cfg.Enabled() {
		log.Info(context.Background(), "Publishing events to Kafka",
			logger.Any("brokers", cfg.Brokers),
			logger.String("topic", cfg.Topic),
		)
		return NewKafkaProducer(cfg, metrics, log)
	}
	return NewLogPublisher(metrics, log)
}
