package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/queue"
)

const RefreshJobType = "market.refresh"

// ParseWatchlist parses exchange:symbol[:interval] entries. The interval
// defaults to 1m.
func ParseWatchlist(entries []string) ([]models.MarketQuery, error) {
	out := make([]models.MarketQuery, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		parts := strings.Split(strings.TrimSpace(e), ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("watchlist entry %q: want exchange:symbol[:interval]", e)
		}
		q := models.MarketQuery{Exchange: parts[0], Symbol: parts[1], Interval: "1m"}
		if len(parts) == 3 {
			switch parts[2] {
			case "1m", "5m", "15m":
				q.Interval = parts[2]
			default:
				return nil, fmt.Errorf("watchlist entry %q: interval must be 1m, 5m or 15m", e)
			}
		}
		if _, dup := seen[q.Key()]; dup {
			continue
		}
		seen[q.Key()] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

// Poller enqueues one refresh job per watched market every interval.
type Poller struct {
	queue     queue.Queue
	watchlist []models.MarketQuery
	interval  time.Duration
	log       *logger.Logger
}

func NewPoller(q queue.Queue, watchlist []models.MarketQuery, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{queue: q, watchlist: watchlist, interval: interval, log: log.With("poller")}
}

// Run ticks immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	if len(p.watchlist) == 0 {
		p.log.Info("empty watchlist, poller idle")
		return
	}
	p.log.Info("poller started",
		logger.Int("markets", len(p.watchlist)),
		logger.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick enqueues a refresh for every market and returns how many were accepted.
func (p *Poller) Tick(ctx context.Context) int {
	n := 0
	for _, q := range p.watchlist {
		if err := p.queue.Enqueue(ctx, RefreshJobType, q); err != nil {
			p.log.Warn("enqueue refresh", logger.String("market", q.Key()), logger.Error(err))
			continue
		}
		n++
	}
	return n
}

// Broadcaster pushes a value to the subscribers of a market key.
type Broadcaster interface {
	Broadcast(key string, v interface{}) int
}

// RefreshJob rebuilds one market's report from fresh data and fans it out.
type RefreshJob struct {
	market    *MarketDataUseCase
	analytics *AnalyticsUseCase
	hub       Broadcaster
	log       *logger.Logger
}

func NewRefreshJob(market *MarketDataUseCase, analytics *AnalyticsUseCase, hub Broadcaster, log *logger.Logger) *RefreshJob {
	return &RefreshJob{market: market, analytics: analytics, hub: hub, log: log.With("refresh-job")}
}

func (j *RefreshJob) Name() string { return "market-refresh" }
func (j *RefreshJob) Type() string { return RefreshJobType }

func (j *RefreshJob) Handle(ctx context.Context, payload json.RawMessage) error {
	q, err := queue.Decode[models.MarketQuery](payload)
	if err != nil {
		return err
	}
	if q.Exchange == "" || q.Symbol == "" {
		return fmt.Errorf("refresh: market missing in %s", string(payload))
	}
	if q.Interval == "" {
		q.Interval = "1m"
	}

	if err := j.market.Invalidate(ctx, q); err != nil {
		j.log.Warn("invalidate market cache", logger.String("market", q.Key()), logger.Error(err))
	}
	report := j.analytics.Report(ctx, q)
	if j.hub != nil {
		j.hub.Broadcast(q.Key(), report)
	}
	return ctx.Err()
}

var _ queue.Job = (*RefreshJob)(nil)
