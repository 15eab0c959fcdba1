package shards

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricShardsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecquery_shards_dispatched_total",
		Help: "Total number of per-shard queries dispatched by the fan-out driver.",
	})
	metricShardsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vecquery_shards_failed_total",
		Help: "Total number of per-shard queries that returned an error or panicked.",
	})
	metricFanOutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vecquery_fanout_duration_seconds",
		Help:    "Wall-clock duration of one fan-out call across all selected shards.",
		Buckets: prometheus.DefBuckets,
	})
)
