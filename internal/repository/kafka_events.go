package repository

import (
	"context"

	"PanelPull/internal/domain/models"
	domrepo "PanelPull/internal/domain/repository"
	pkgkafka "PanelPull/pkg/kafka"
)

// KafkaEventPublisher implements EventPublisher for Kafka.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a Kafka-backed build event publisher.
// Events are keyed by run id so one run's events land in order.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) domrepo.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishBuild(ctx context.Context, ev *models.BuildEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.RunID), ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
