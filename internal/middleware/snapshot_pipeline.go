package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"MarketMonitor/internal/domain/models"
	domrepo "MarketMonitor/internal/domain/repository"
	"MarketMonitor/pkg/logger"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Proc is the downstream the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, s *models.AnalyticsSnapshot) error
}

// BatchProc is implemented by downstreams that accept several snapshots at
// once. Buffered retries are flushed through it when available.
type BatchProc interface {
	ProcessBatch(ctx context.Context, snaps []*models.AnalyticsSnapshot) error
}

// SnapshotPipeline sits between the analytics use case and the recorder. It
// validates snapshots, keeps at most one per market per throttle window and
// buffers snapshots the recorder rejected, retrying them with capped
// exponential backoff.
type SnapshotPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	log      *logger.Logger
	throttle time.Duration
	bufCh    chan *models.AnalyticsSnapshot
	batch    int

	backoffMin time.Duration
	backoffMax time.Duration

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	done     chan struct{}
	lastSeen map[string]time.Time
	now      func() time.Time
}

type PipelineOption func(*SnapshotPipeline)

// WithThrottle sets the minimum gap between two accepted snapshots of one market.
func WithThrottle(d time.Duration) PipelineOption {
	return func(p *SnapshotPipeline) {
		if d >= 0 {
			p.throttle = d
		}
	}
}

// WithBufferSize sets how many rejected snapshots are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.AnalyticsSnapshot, n)
		}
	}
}

// WithBatchSize caps how many buffered snapshots one retry flushes.
func WithBatchSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.batch = n
		}
	}
}

func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *SnapshotPipeline) {
		if min > 0 && max >= min {
			p.backoffMin, p.backoffMax = min, max
		}
	}
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *SnapshotPipeline) {
		if l != nil {
			p.log = l.With("snapshot-pipeline")
		}
	}
}

func NewSnapshotPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		proc:       proc,
		metrics:    metrics,
		log:        logger.Nop(),
		throttle:   5 * time.Second,
		bufCh:      make(chan *models.AnalyticsSnapshot, 500),
		batch:      50,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		lastSeen:   make(map[string]time.Time),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the retry loop for buffered snapshots. A stopped pipeline
// may be started again.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stopCh, p.done
	p.mu.Unlock()

	go p.flushLoop(ctx, stop, done)
}

func (p *SnapshotPipeline) flushLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	backoff := p.backoffMin
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case s := <-p.bufCh:
			failed := p.flush(ctx, p.drain(s))
			if len(failed) == 0 {
				backoff = p.backoffMin
				continue
			}
			p.metrics.RecordError("pipeline_flush")
			backoff = time.Duration(math.Min(float64(backoff*2), float64(p.backoffMax)))
			for _, f := range failed {
				select {
				case p.bufCh <- f:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
					p.log.Warn("snapshot dropped after retry", logger.String("market", f.MarketKey()))
				}
			}
			select {
			case <-time.After(backoff):
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// drain collects first plus whatever else is buffered, up to the batch size.
func (p *SnapshotPipeline) drain(first *models.AnalyticsSnapshot) []*models.AnalyticsSnapshot {
	out := []*models.AnalyticsSnapshot{first}
	for len(out) < p.batch {
		select {
		case s := <-p.bufCh:
			out = append(out, s)
		default:
			return out
		}
	}
	return out
}

// flush retries a batch and returns the snapshots that still failed.
func (p *SnapshotPipeline) flush(ctx context.Context, batch []*models.AnalyticsSnapshot) []*models.AnalyticsSnapshot {
	if bp, ok := p.proc.(BatchProc); ok && len(batch) > 1 {
		if err := bp.ProcessBatch(ctx, batch); err != nil {
			p.log.Debug("batch retry failed", logger.Int("size", len(batch)), logger.Error(err))
			return batch
		}
		return nil
	}
	for i, s := range batch {
		if err := p.proc.Process(ctx, s); err != nil {
			p.log.Debug("retry failed", logger.String("market", s.MarketKey()), logger.Error(err))
			return batch[i:]
		}
	}
	return nil
}

// Stop ends the retry loop. Snapshots still buffered are reported and dropped.
func (p *SnapshotPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stop, done := p.stopCh, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	if n := len(p.bufCh); n > 0 {
		p.log.Warn("pipeline stopped with buffered snapshots", logger.Int("buffered", n))
	}
}

// Process validates, throttles and forwards s. A downstream failure buffers
// s for retry and is returned to the caller.
func (p *SnapshotPipeline) Process(ctx context.Context, s *models.AnalyticsSnapshot) error {
	start := time.Now()
	if err := validateSnapshot(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(s.MarketKey()) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Buffered reports how many snapshots wait for retry.
func (p *SnapshotPipeline) Buffered() int { return len(p.bufCh) }

func validateSnapshot(s *models.AnalyticsSnapshot) error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil", ErrInvalidSnapshot)
	case s.Exchange == "" || s.Symbol == "":
		return fmt.Errorf("%w: market empty", ErrInvalidSnapshot)
	case s.ComputedAt.IsZero():
		return fmt.Errorf("%w: computed_at missing", ErrInvalidSnapshot)
	case s.LastPrice < 0 || math.IsNaN(s.LastPrice) || math.IsInf(s.LastPrice, 0):
		return fmt.Errorf("%w: last price %v", ErrInvalidSnapshot, s.LastPrice)
	}
	return nil
}

func (p *SnapshotPipeline) allow(market string) bool {
	if p.throttle <= 0 {
		return true
	}
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastSeen[market]; ok && now.Sub(last) < p.throttle {
		return false
	}
	p.lastSeen[market] = now
	return true
}
