package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"MarketMonitor/internal/domain/models"
	drepo "MarketMonitor/internal/domain/repository"
	"MarketMonitor/pkg/cache"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/util"

	"github.com/shopspring/decimal"
)

// ErrPairsRequired is returned when a multi-pair query names no usable pair.
var ErrPairsRequired = errors.New("pairs parameter is required (format: exchange:pair,exchange:pair)")

// PnlUseCase proxies PnL, markout and agent queries with short-lived caching.
type PnlUseCase struct {
	source drepo.MarketDataSource
	cache  cache.Service
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

func NewPnlUseCase(source drepo.MarketDataSource, c cache.Service, ttl time.Duration, log *logger.Logger) *PnlUseCase {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PnlUseCase{source: source, cache: c, ttl: ttl, log: log.With("pnl"), now: time.Now}
}

func (uc *PnlUseCase) RecentPnl(ctx context.Context, q models.RecentPnlQuery) (json.RawMessage, error) {
	key := cache.Key("pnl", "recent", q.Exchange, q.Pair, q.Hours)
	return uc.remember(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return uc.source.RecentPnl(ctx, q)
	})
}

func (uc *PnlUseCase) InventoryPnl(ctx context.Context, q models.InventoryPnlQuery) (json.RawMessage, error) {
	key := cache.Key("pnl", "inventory", q.Exchange, q.Pair, q.Hours, q.Interval)
	return uc.remember(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return uc.source.InventoryPnl(ctx, q)
	})
}

func (uc *PnlUseCase) Markout(ctx context.Context, q models.MarkoutQuery) (json.RawMessage, error) {
	key := cache.Key("markout", q.Exchange, q.Pair, q.Hours)
	return uc.remember(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return uc.source.Markout(ctx, q)
	})
}

func (uc *PnlUseCase) remember(ctx context.Context, key string, load func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	v, _, err := cache.Remember(ctx, uc.cache, key, uc.ttl, load)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (uc *PnlUseCase) Agents(ctx context.Context, q models.AgentsQuery) (*models.AgentsResponse, error) {
	isLive, withConfig := q.Live(), q.WithConfig()
	key := cache.Key("agents", isLive, withConfig)

	resp, _, err := cache.Remember(ctx, uc.cache, key, uc.ttl, func(ctx context.Context) (*models.AgentsResponse, error) {
		res, err := uc.source.Agents(ctx, isLive)
		if err != nil {
			return nil, err
		}
		return TransformAgents(res, withConfig), nil
	})
	return resp, err
}

// TransformAgents flattens instructs into exchange:pair keys and, when
// withConfig is set, the first parameter set of each direct instruct.
func TransformAgents(res *models.UpstreamAgentsResult, withConfig bool) *models.AgentsResponse {
	out := &models.AgentsResponse{Summary: res.Summary, Agents: make([]models.Agent, 0, len(res.Agents))}

	for _, a := range res.Agents {
		var (
			pairs   []string
			seen    = map[string]struct{}{}
			configs []models.PairConfig
		)
		add := func(exchange, pair string) {
			key := exchange + ":" + pair
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			pairs = append(pairs, key)
		}

		if a.Config != nil {
			for _, in := range a.Config.Instructs {
				if in.PairKey != "" && in.Exchange != "" {
					add(in.Exchange, in.PairKey)
					if withConfig && len(in.Parameters) > 0 {
						configs = append(configs, models.PairConfig{
							PairKey:         in.PairKey,
							Exchange:        in.Exchange,
							AgentParameters: in.Parameters[0],
						})
					}
				}
				for _, ep := range in.ExchangeWithPairKeys {
					add(ep.Exchange, ep.PairKey)
				}
			}
		}

		agent := models.Agent{
			AgentID:      a.AgentID,
			StrategyName: a.StrategyName,
			Host:         a.Host,
			IsLive:       a.IsLive,
			Exchanges:    a.Exchanges,
			Pairs:        pairs,
			UpdatedAt:    a.UpdatedAt,
		}
		if agent.Pairs == nil {
			agent.Pairs = []string{}
		}
		if withConfig {
			agent.PairConfigs = configs
			if agent.PairConfigs == nil {
				agent.PairConfigs = []models.PairConfig{}
			}
		}
		out.Agents = append(out.Agents, agent)
	}
	return out
}

type exchangeGroup struct {
	exchange string
	pairs    []string
}

// GroupPairs parses "exchange:pair,..." into per-exchange groups, keeping
// first-seen order for exchanges and pairs.
func GroupPairs(raw string) ([]exchangeGroup, error) {
	var groups []exchangeGroup
	index := map[string]int{}
	for _, item := range util.SplitList(raw) {
		exchange, pair, ok := strings.Cut(item, ":")
		if !ok || exchange == "" || pair == "" {
			return nil, fmt.Errorf("%w: bad entry %q", ErrPairsRequired, item)
		}
		i, ok := index[exchange]
		if !ok {
			i = len(groups)
			index[exchange] = i
			groups = append(groups, exchangeGroup{exchange: exchange})
		}
		groups[i].pairs = append(groups[i].pairs, pair)
	}
	if len(groups) == 0 {
		return nil, ErrPairsRequired
	}
	return groups, nil
}

func (uc *PnlUseCase) MultiPair(ctx context.Context, q models.MultiPairQuery) (*models.MultiPairPnlResponse, error) {
	groups, err := GroupPairs(q.Pairs)
	if err != nil {
		return nil, err
	}

	key := cache.Key("pnl", "multi", q.Pairs, q.Hours)
	resp, _, err := cache.Remember(ctx, uc.cache, key, uc.ttl, func(ctx context.Context) (*models.MultiPairPnlResponse, error) {
		return uc.fetchMultiPair(ctx, groups, q.Hours)
	})
	return resp, err
}

func (uc *PnlUseCase) fetchMultiPair(ctx context.Context, groups []exchangeGroup, hours int) (*models.MultiPairPnlResponse, error) {
	end := uc.now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	results := make([]*models.UpstreamMultiPairResult, len(groups))
	errs := make([]error, len(groups))
	var wg sync.WaitGroup
	for i, g := range groups {
		wg.Add(1)
		go func(i int, g exchangeGroup) {
			defer wg.Done()
			results[i], errs[i] = uc.source.MultiPairPnl(ctx, g.exchange, g.pairs, start, end)
		}(i, g)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("multi-pair pnl for %s: %w", groups[i].exchange, err)
		}
	}

	rows := make([]models.PairPnlSummary, 0)
	for i, res := range results {
		if res == nil {
			continue
		}
		for _, row := range res.PairComparison {
			row.Exchange = groups[i].exchange
			rows = append(rows, row)
		}
	}

	return &models.MultiPairPnlResponse{
		Period:    models.Period{Start: util.FormatISO(start), End: util.FormatISO(end)},
		PairCount: len(rows),
		Pairs:     rows,
		Aggregate: Aggregate(rows),
	}, nil
}

func dec(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

// Aggregate sums the rows in decimal to avoid drift across many pairs.
// Volume is buy plus sell volume per row.
func Aggregate(rows []models.PairPnlSummary) models.PnlAggregate {
	var total, realized, unrealized, fee, volume decimal.Decimal
	var trades int64
	for _, r := range rows {
		total = total.Add(decimal.NewFromFloat(r.TotalPnl))
		realized = realized.Add(dec(r.RealizedPnl))
		unrealized = unrealized.Add(dec(r.UnrealizedPnl))
		fee = fee.Add(decimal.NewFromFloat(r.TotalFee))
		volume = volume.Add(dec(r.BuyVolume)).Add(dec(r.SellVolume))
		trades += r.TradeCount
	}
	return models.PnlAggregate{
		TotalPnl:        total.InexactFloat64(),
		RealizedPnl:     realized.InexactFloat64(),
		UnrealizedPnl:   unrealized.InexactFloat64(),
		TotalFee:        fee.InexactFloat64(),
		TotalVolume:     volume.InexactFloat64(),
		TotalTradeCount: trades,
	}
}

// Tools passes the upstream tool catalogue through.
func (uc *PnlUseCase) Tools(ctx context.Context) (json.RawMessage, error) {
	return uc.source.Tools(ctx)
}
