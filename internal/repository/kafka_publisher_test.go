package repository

import (
	"context"
	"testing"

	"MarketMonitor/internal/domain/models"
	pkgkafka "MarketMonitor/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	topic string
	keys  []string
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key []byte, _ interface{}) error {
	p.topic = topic
	p.keys = append(p.keys, string(key))
	return nil
}

func (p *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	p.topic = topic
	for _, m := range msgs {
		p.keys = append(p.keys, string(m.Key))
	}
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestKafkaPublisherKeysByMarket(t *testing.T) {
	prod := &recordingProducer{}
	pub := NewKafkaSnapshotPublisher(prod, "analytics.snapshots")

	require.NoError(t, pub.Publish(context.Background(), snapshot("a")))
	eth := snapshot("b")
	eth.Symbol = "ETHUSDT"
	require.NoError(t, pub.PublishBatch(context.Background(), []*models.AnalyticsSnapshot{eth, nil}))

	assert.Equal(t, "analytics.snapshots", prod.topic)
	assert.Equal(t, []string{"binance:BTCUSDT", "binance:ETHUSDT"}, prod.keys)
}
