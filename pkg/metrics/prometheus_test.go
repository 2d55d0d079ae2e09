package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordUpstreamCall("query_s3_trades_summary", 0.2, nil)
	r.RecordUpstreamCall("query_s3_trades_summary", 0.4, errors.New("x"))
	r.RecordCache("market", true)
	r.RecordCache("market", false)
	r.RecordCache("market", false)
	r.RecordMarketState("binance:BTCUSDT", "trending_bear", 0.8, 42, 93000)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.upstreamCalls.WithLabelValues("query_s3_trades_summary", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("market", "miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.regime.WithLabelValues("binance:BTCUSDT")))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.riskScore.WithLabelValues("binance:BTCUSDT")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.upstreamDuration))
}
