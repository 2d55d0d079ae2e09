package upstream

import (
	"context"
	"encoding/json"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/internal/domain/repository"
	"MarketMonitor/pkg/util"
)

const (
	ToolOrderbookSummary = "query_s3_orderbook_summary"
	ToolTradesSummary    = "query_s3_trades_summary"
	ToolRecentPnl        = "query_recent_pnl"
	ToolInventoryPnl     = "query_inventory_pnl"
	ToolMarkout          = "query_markout_analysis"
	ToolAgents           = "query_mm_agents"
	ToolMultiPairPnl     = "query_multi_pair_pnl"
)

// markoutHorizons are the post-trade horizons in minutes.
var markoutHorizons = []int{1, 5, 30, 60}

// Source maps domain queries onto upstream tool calls.
type Source struct {
	client *ToolClient
	now    func() time.Time
}

var _ repository.MarketDataSource = (*Source)(nil)

func NewSource(client *ToolClient) *Source {
	return &Source{client: client, now: time.Now}
}

func (s *Source) summaryParams(q models.MarketQuery) map[string]interface{} {
	end := s.now()
	start := end.Add(-util.Lookback(q.Interval))
	return map[string]interface{}{
		"exchange":   q.Exchange,
		"symbol":     q.Symbol,
		"start_time": util.FormatKST(start),
		"end_time":   util.FormatKST(end),
		"interval":   q.Interval,
		"timezone":   "KST",
	}
}

func (s *Source) OrderbookSummary(ctx context.Context, q models.MarketQuery) (*models.OrderbookSummaryResult, error) {
	var out models.OrderbookSummaryResult
	if err := s.client.CallTool(ctx, ToolOrderbookSummary, s.summaryParams(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Source) TradesSummary(ctx context.Context, q models.MarketQuery) (*models.TradesSummaryResult, error) {
	var out models.TradesSummaryResult
	if err := s.client.CallTool(ctx, ToolTradesSummary, s.summaryParams(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Source) window(hours int) (string, string) {
	end := s.now()
	start := end.Add(-time.Duration(hours) * time.Hour)
	return util.FormatISO(start), util.FormatISO(end)
}

func (s *Source) RecentPnl(ctx context.Context, q models.RecentPnlQuery) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.client.CallTool(ctx, ToolRecentPnl, map[string]interface{}{
		"pair":     q.Pair,
		"exchange": q.Exchange,
		"hours":    q.Hours,
	}, &out)
	return out, err
}

func (s *Source) InventoryPnl(ctx context.Context, q models.InventoryPnlQuery) (json.RawMessage, error) {
	start, end := s.window(q.Hours)
	var out json.RawMessage
	err := s.client.CallTool(ctx, ToolInventoryPnl, map[string]interface{}{
		"pair":       q.Pair,
		"exchange":   q.Exchange,
		"start_time": start,
		"end_time":   end,
		"interval":   q.Interval,
	}, &out)
	return out, err
}

func (s *Source) Markout(ctx context.Context, q models.MarkoutQuery) (json.RawMessage, error) {
	start, end := s.window(q.Hours)
	var out json.RawMessage
	err := s.client.CallTool(ctx, ToolMarkout, map[string]interface{}{
		"pair":       q.Pair,
		"exchange":   q.Exchange,
		"start_time": start,
		"end_time":   end,
		"intervals":  markoutHorizons,
	}, &out)
	return out, err
}

func (s *Source) Agents(ctx context.Context, isLive bool) (*models.UpstreamAgentsResult, error) {
	var out models.UpstreamAgentsResult
	if err := s.client.CallTool(ctx, ToolAgents, map[string]interface{}{"is_live": isLive}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Source) MultiPairPnl(ctx context.Context, exchange string, pairs []string, from, to time.Time) (*models.UpstreamMultiPairResult, error) {
	var out models.UpstreamMultiPairResult
	err := s.client.CallTool(ctx, ToolMultiPairPnl, map[string]interface{}{
		"exchange":   exchange,
		"pairs":      pairs,
		"start_time": util.FormatISO(from),
		"end_time":   util.FormatISO(to),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Source) Tools(ctx context.Context) (json.RawMessage, error) {
	return s.client.ListTools(ctx)
}
