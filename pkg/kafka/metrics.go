package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer

	producerMsgs    *prometheus.CounterVec
	producerBytes   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec

	consumerQueueDepth *prometheus.GaugeVec
	consumerHandled    *prometheus.CounterVec
	consumerLatency    *prometheus.HistogramVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		producerMsgs = f.NewCounterVec(
			prometheus.CounterOpts{Name: "mmon_kafka_producer_messages_total", Help: "Messages written to Kafka"},
			[]string{"topic", "compression", "result"},
		)
		producerBytes = f.NewCounterVec(
			prometheus.CounterOpts{Name: "mmon_kafka_producer_bytes_total", Help: "Payload bytes written"},
			[]string{"topic"},
		)
		producerLatency = f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "mmon_kafka_producer_write_seconds", Help: "Write latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)
		consumerQueueDepth = f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "mmon_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerHandled = f.NewCounterVec(
			prometheus.CounterOpts{Name: "mmon_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerLatency = f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "mmon_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}

func initProducerMetrics() { initMetrics() }

func initConsumerMetrics() { initMetrics() }

func observeProducer(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgs.WithLabelValues(topic, comp, result).Add(float64(count))
	producerBytes.WithLabelValues(topic).Add(float64(bytes))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeHandled(topic, result string, dur time.Duration) {
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
