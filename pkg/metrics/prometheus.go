package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Regimes in gauge order. The regime gauge exports the index.
var regimeIndex = map[string]float64{
	"unknown":         0,
	"consolidation":   1,
	"mean_reverting":  2,
	"trending_bull":   3,
	"trending_bear":   4,
	"high_volatility": 5,
}

// Recorder implements repository.Metrics on Prometheus.
type Recorder struct {
	upstreamCalls    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	engineDuration   *prometheus.HistogramVec
	latency          *prometheus.HistogramVec
	snapshotsSent    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	regime           *prometheus.GaugeVec
	confidence       *prometheus.GaugeVec
	riskScore        *prometheus.GaugeVec
	lastPrice        *prometheus.GaugeVec
}

// New registers on the default registry. Call it once per process.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		upstreamCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mmon_upstream_calls_total",
				Help: "Upstream tool calls by outcome",
			},
			[]string{"tool", "outcome"},
		),
		upstreamDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mmon_upstream_call_duration_seconds",
				Help:    "Upstream tool call duration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"tool"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mmon_cache_lookups_total",
				Help: "Cache lookups by result",
			},
			[]string{"cache", "result"},
		),
		engineDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mmon_engine_duration_seconds",
				Help:    "Analytics engine compute time",
				Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
			},
			[]string{"engine"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mmon_operation_duration_seconds",
				Help:    "Pipeline, sink and job latencies",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		snapshotsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mmon_snapshots_sent_total",
				Help: "Analytics snapshots handed to a backend",
			},
			[]string{"backend", "market"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mmon_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mmon_market_regime",
				Help: "Current regime index (0 unknown .. 5 high_volatility)",
			},
			[]string{"market"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mmon_market_regime_confidence",
				Help: "Confidence of the current regime",
			},
			[]string{"market"},
		),
		riskScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mmon_market_risk_score",
				Help: "Composite risk score (below 0.5 low, 1.5 and above extreme)",
			},
			[]string{"market"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mmon_market_last_price",
				Help: "Last close seen for a market",
			},
			[]string{"market"},
		),
	}
}

func (r *Recorder) RecordUpstreamCall(tool string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.upstreamCalls.WithLabelValues(tool, outcome).Inc()
	r.upstreamDuration.WithLabelValues(tool).Observe(seconds)
}

func (r *Recorder) RecordCache(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(name, result).Inc()
}

func (r *Recorder) RecordEngine(engine string, seconds float64) {
	r.engineDuration.WithLabelValues(engine).Observe(seconds)
}

func (r *Recorder) RecordLatency(operation string, seconds float64) {
	r.latency.WithLabelValues(operation).Observe(seconds)
}

func (r *Recorder) RecordSnapshotSent(backend, market string) {
	r.snapshotsSent.WithLabelValues(backend, market).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordMarketState(market, regime string, confidence, riskScore, lastPrice float64) {
	r.regime.WithLabelValues(market).Set(regimeIndex[regime])
	r.confidence.WithLabelValues(market).Set(confidence)
	r.riskScore.WithLabelValues(market).Set(riskScore)
	r.lastPrice.WithLabelValues(market).Set(lastPrice)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordUpstreamCall(string, float64, error) {}
func (Nop) RecordCache(string, bool) {}
func (Nop) RecordEngine(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordSnapshotSent(string, string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordMarketState(string, string, float64, float64, float64) {}
