package repository

import (
	"context"

	"MarketMonitor/internal/domain/models"
	domrepo "MarketMonitor/internal/domain/repository"
	pkgkafka "MarketMonitor/pkg/kafka"
)

// Producer is the part of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaSnapshotPublisher publishes snapshots keyed by exchange:symbol.
type KafkaSnapshotPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaSnapshotPublisher(producer Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, s *models.AnalyticsSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.MarketKey()), s)
}

func (p *KafkaSnapshotPublisher) PublishBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(snaps))
	for _, s := range snaps {
		if s == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(s.MarketKey()), Value: s})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector and closed by the app.
func (p *KafkaSnapshotPublisher) Close() error { return nil }

var _ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)
var _ Producer = (*pkgkafka.Producer)(nil)
