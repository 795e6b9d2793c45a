package repository

import (
	"context"

	"MarketBrain/internal/domain/models"
	domrepo "MarketBrain/internal/domain/repository"
	pkgkafka "MarketBrain/pkg/kafka"
)

// KafkaEventPublisher sends ledger events keyed by symbol, so events for a
// symbol stay ordered within a partition.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, ev models.LedgerEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev)
}

// PublishMessage lets the log collector ship aggregated errors through the
// same producer.
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.PublishMessage(ctx, topic, payload)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
