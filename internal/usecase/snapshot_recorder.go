package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketMonitor/internal/domain/models"
	drepo "MarketMonitor/internal/domain/repository"
)

// Snapshot backends.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

var ErrNilSnapshot = errors.New("snapshot is nil")

// SnapshotRecorder routes snapshots to the configured backend.
type SnapshotRecorder struct {
	pub     drepo.SnapshotPublisher
	store   drepo.SnapshotStorage
	metrics drepo.Metrics
	backend string
}

// NewSnapshotRecorder creates a recorder. pub or store may be nil when their
// backend is not selected.
func NewSnapshotRecorder(
	pub drepo.SnapshotPublisher,
	store drepo.SnapshotStorage,
	metrics drepo.Metrics,
	backend string,
) *SnapshotRecorder {
	if backend == "" {
		backend = BackendNone
	}
	return &SnapshotRecorder{pub: pub, store: store, metrics: metrics, backend: backend}
}

func (r *SnapshotRecorder) Backend() string { return r.backend }

// Process records one snapshot.
func (r *SnapshotRecorder) Process(ctx context.Context, s *models.AnalyticsSnapshot) error {
	if s == nil {
		return ErrNilSnapshot
	}

	start := time.Now()
	var err error

	switch r.backend {
	case BackendNone:
		return nil
	case BackendKafka:
		err = r.pub.Publish(ctx, s)
	case BackendClickHouse:
		err = r.store.Store(ctx, s)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("record_snapshot")
		return fmt.Errorf("record snapshot: %w", err)
	}

	r.metrics.RecordSnapshotSent(r.backend, s.MarketKey())
	r.metrics.RecordLatency("record_snapshot", time.Since(start).Seconds())
	return nil
}

// ProcessBatch records several snapshots in one call.
func (r *SnapshotRecorder) ProcessBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error {
	if len(snaps) == 0 || r.backend == BackendNone {
		return nil
	}

	start := time.Now()
	var err error

	switch r.backend {
	case BackendKafka:
		err = r.pub.PublishBatch(ctx, snaps)
	case BackendClickHouse:
		err = r.store.StoreBatch(ctx, snaps)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("record_snapshot_batch")
		return fmt.Errorf("record snapshot batch: %w", err)
	}

	for _, s := range snaps {
		r.metrics.RecordSnapshotSent(r.backend, s.MarketKey())
	}
	r.metrics.RecordLatency("record_snapshot_batch", time.Since(start).Seconds())
	return nil
}

// Close closes the publisher and store when present.
func (r *SnapshotRecorder) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}
