package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"MarketMonitor/internal/domain/models"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolServer struct {
	calls   atomic.Int32
	mu      sync.Mutex
	params  map[string]map[string]interface{}
	methods map[string]string
	handle  func(w http.ResponseWriter, tool string, n int32)
}

func (ts *toolServer) paramsFor(tool string) map[string]interface{} {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.params[tool]
}

func (ts *toolServer) methodFor(path string) string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.methods[path]
}

func newToolServer(t *testing.T, handle func(w http.ResponseWriter, tool string, n int32)) (*httptest.Server, *toolServer) {
	t.Helper()
	ts := &toolServer{params: map[string]map[string]interface{}{}, methods: map[string]string{}, handle: handle}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.methods[r.URL.Path] = r.Method
		ts.mu.Unlock()
		if r.URL.Path == "/api/tools" {
			_, _ = w.Write([]byte("tool catalogue unavailable"))
			return
		}
		tool := strings.TrimPrefix(r.URL.Path, "/api/tools/")
		var p map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&p)
		ts.mu.Lock()
		ts.params[tool] = p
		ts.mu.Unlock()
		ts.handle(w, tool, ts.calls.Add(1))
	}))
	t.Cleanup(srv.Close)
	return srv, ts
}

func ok(w http.ResponseWriter, result interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "result": result})
}

func TestCallToolDecodesResult(t *testing.T) {
	srv, ts := newToolServer(t, func(w http.ResponseWriter, tool string, _ int32) {
		ok(w, map[string]interface{}{
			"data": []map[string]interface{}{{"timestamp": "2025-01-01 09:00", "ohlc": map[string]float64{"close": 101}}},
		})
	})
	src := NewSource(NewToolClient(srv.URL))
	src.now = func() time.Time { return time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC) }

	res, err := src.TradesSummary(context.Background(), models.MarketQuery{Exchange: "binance", Symbol: "BTCUSDT", Interval: "5m"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 101.0, res.Data[0].OHLC.Close)
	assert.Nil(t, res.Data[0].BuySell)

	p := ts.paramsFor(ToolTradesSummary)
	assert.Equal(t, "KST", p["timezone"])
	assert.Equal(t, "2025-01-01 12:00", p["end_time"])
	assert.Equal(t, "2024-12-31 21:00", p["start_time"])
}

func TestCallToolFailureIsNotRetried(t *testing.T) {
	srv, ts := newToolServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "pair not found"})
	})
	c := NewToolClient(srv.URL, WithRetry(3, time.Millisecond))

	err := c.CallTool(context.Background(), ToolRecentPnl, nil, nil)
	require.ErrorIs(t, err, ErrToolFailed)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "pair not found", te.Message)
	assert.Equal(t, int32(1), ts.calls.Load())
}

func TestCallToolRetriesServerErrors(t *testing.T) {
	srv, ts := newToolServer(t, func(w http.ResponseWriter, _ string, n int32) {
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		ok(w, map[string]int{"n": int(n)})
	})
	c := NewToolClient(srv.URL, WithRetry(3, time.Millisecond))

	var out map[string]int
	require.NoError(t, c.CallTool(context.Background(), "x", nil, &out))
	assert.Equal(t, 3, out["n"])
	assert.Equal(t, int32(3), ts.calls.Load())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv, ts := newToolServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := NewToolClient(srv.URL, WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		assert.Error(t, c.CallTool(context.Background(), "x", nil, nil))
	}
	err := c.CallTool(context.Background(), "x", nil, nil)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), ts.calls.Load())
}

func TestToolFailuresKeepBreakerClosed(t *testing.T) {
	srv, ts := newToolServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
	})
	c := NewToolClient(srv.URL, WithBreaker(1, time.Minute))
	for i := 0; i < 3; i++ {
		err := c.CallTool(context.Background(), "x", nil, nil)
		assert.EqualError(t, err, "upstream tool x: upstream API error")
	}
	assert.Equal(t, int32(3), ts.calls.Load())
}

func TestRawPassThroughAndTools(t *testing.T) {
	srv, ts := newToolServer(t, func(w http.ResponseWriter, _ string, _ int32) {
		ok(w, map[string]interface{}{"total_pnl": 12.5, "extra": []int{1}})
	})
	src := NewSource(NewToolClient(srv.URL))

	raw, err := src.Markout(context.Background(), models.MarkoutQuery{Pair: "KYO-USDT-SPOT", Exchange: "gate.io", Hours: 48})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_pnl":12.5,"extra":[1]}`, string(raw))
	assert.Equal(t, []interface{}{1.0, 5.0, 30.0, 60.0}, ts.paramsFor(ToolMarkout)["intervals"])

	tools, err := src.Tools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `"tool catalogue unavailable"`, string(tools))

	assert.Equal(t, http.MethodPost, ts.methodFor("/api/tools/"+ToolMarkout))
	assert.Equal(t, http.MethodGet, ts.methodFor("/api/tools"))
}
