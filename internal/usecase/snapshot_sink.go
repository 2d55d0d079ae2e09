package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketMonitor/internal/domain/models"
	drepo "MarketMonitor/internal/domain/repository"
	pkgkafka "MarketMonitor/pkg/kafka"
)

// SnapshotSink consumes published snapshots and writes them to storage.
type SnapshotSink struct {
	topic   string
	storage drepo.SnapshotStorage
	metrics drepo.Metrics
}

func NewSnapshotSink(topic string, storage drepo.SnapshotStorage, metrics drepo.Metrics) *SnapshotSink {
	return &SnapshotSink{topic: topic, storage: storage, metrics: metrics}
}

func (h *SnapshotSink) Topic() string { return h.topic }

func (h *SnapshotSink) Handle(ctx context.Context, b []byte) error {
	var s models.AnalyticsSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("sink_unmarshal")
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Exchange == "" || s.Symbol == "" {
		h.metrics.RecordError("sink_invalid")
		return fmt.Errorf("snapshot %q: missing market", s.ID)
	}
	if !s.ComputedAt.IsZero() {
		h.metrics.RecordLatency("sink_e2e", time.Since(s.ComputedAt).Seconds())
	}

	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("sink_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("sink_store")
		return fmt.Errorf("store snapshot %s: %w", s.ID, err)
	}
	h.metrics.RecordSnapshotSent(BackendClickHouse, s.MarketKey())
	return nil
}

var _ pkgkafka.MessageHandler = (*SnapshotSink)(nil)
