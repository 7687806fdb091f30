// internal/utils/metrics/collector.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "memeswap"

// Stage names of the swap pipeline.
const (
	StageQuote     = "quote"
	StageBuild     = "build"
	StageSign      = "sign"
	StageBroadcast = "broadcast"
	StagePersist   = "persist"
)

// Collector держит метрики пайплайна. Nil-коллектор ничего не пишет,
// поэтому компоненты можно собирать без метрик (например, в тестах).
type Collector struct {
	quotes        *prometheus.CounterVec
	stages        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	ledgerWrites  *prometheus.CounterVec
	upstream      *prometheus.CounterVec
	rpcLatency    *prometheus.HistogramVec
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_total",
				Help:      "Aggregator quote requests by result",
			},
			[]string{"result"},
		),
		stages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swap_stage_total",
				Help:      "Swap pipeline stage executions",
			},
			[]string{"stage", "status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "swap_stage_duration_seconds",
				Help:      "Swap pipeline stage duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"stage"},
		),
		ledgerWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_writes_total",
				Help:      "Swap ledger writes by status",
			},
			[]string{"status"},
		),
		upstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests to external market and aggregator APIs",
			},
			[]string{"provider", "endpoint", "status"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "Solana RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method"},
		),
	}

	reg.MustRegister(c.quotes, c.stages, c.stageDuration, c.ledgerWrites, c.upstream, c.rpcLatency)
	return c
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordQuote counts a quote outcome: "ok", "empty" or "error".
func (c *Collector) RecordQuote(result string) {
	if c == nil {
		return
	}
	c.quotes.WithLabelValues(result).Inc()
}

// RecordStage records a pipeline stage run.
func (c *Collector) RecordStage(stage string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.stages.WithLabelValues(stage, status(err)).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) RecordLedgerWrite(err error) {
	if c == nil {
		return
	}
	c.ledgerWrites.WithLabelValues(status(err)).Inc()
}

func (c *Collector) RecordUpstream(provider, endpoint string, err error) {
	if c == nil {
		return
	}
	c.upstream.WithLabelValues(provider, endpoint, status(err)).Inc()
}

func (c *Collector) RecordRPC(method string, d time.Duration) {
	if c == nil {
		return
	}
	c.rpcLatency.WithLabelValues(method).Observe(d.Seconds())
}
