package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports PoolStats and RequestStats snapshots as Prometheus
// gauges and counters. It does not scrape on its own; callers push
// snapshots into it (typically off a ticker on the owning proxy thread),
// mirroring how the teacher's promexporter.ClientMetrics is driven by an
// external polling loop rather than a prometheus.Collector callback.
type PrometheusSink struct {
	poolConns   *prometheus.GaugeVec
	poolCreated *prometheus.GaugeVec
	poolErrors  *prometheus.GaugeVec
	poolWaitNs  *prometheus.GaugeVec

	reqReplies    *prometheus.CounterVec
	reqErrors     *prometheus.CounterVec
	reqTimeouts   *prometheus.CounterVec
	reqLatencyAvg *prometheus.GaugeVec
}

// NewPrometheusSink creates and registers a PrometheusSink's metrics
// against registry. Passing prometheus.NewRegistry() keeps the sink's
// metrics isolated from the default registry, useful in tests.
func NewPrometheusSink(registry *prometheus.Registry) *PrometheusSink {
	s := &PrometheusSink{
		poolConns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcrelay_pool_connections",
				Help: "Connection pool statistics by state",
			},
			[]string{"pool", "state"}, // total, active, idle
		),
		poolCreated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcrelay_pool_connections_created_total",
				Help: "Total connections created",
			},
			[]string{"pool"},
		),
		poolErrors: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcrelay_pool_acquire_errors",
				Help: "Cumulative connection acquire errors",
			},
			[]string{"pool"},
		),
		poolWaitNs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcrelay_pool_acquire_wait_ns_total",
				Help: "Cumulative nanoseconds spent waiting to acquire a connection",
			},
			[]string{"pool"},
		),
		reqReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcrelay_request_replies_total",
				Help: "Client-visible replies sent, by pool",
			},
			[]string{"pool"},
		),
		reqErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcrelay_request_errors_total",
				Help: "Client-visible error replies sent, by pool",
			},
			[]string{"pool"},
		),
		reqTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcrelay_request_timeouts_total",
				Help: "Client-visible timeout replies sent, by pool",
			},
			[]string{"pool"},
		),
		reqLatencyAvg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcrelay_request_latency_avg_ns",
				Help: "Average request latency since the last snapshot, in nanoseconds",
			},
			[]string{"pool"},
		),
	}

	registry.MustRegister(
		s.poolConns,
		s.poolCreated,
		s.poolErrors,
		s.poolWaitNs,
		s.reqReplies,
		s.reqErrors,
		s.reqTimeouts,
		s.reqLatencyAvg,
	)

	return s
}

// ObservePool records a PoolStats snapshot for the named pool. Counters
// (CreatedConns, AcquireWaitTimeNs) are cumulative in PoolStats itself, so
// they are exposed as gauges here rather than re-derived as Prometheus
// counters, which would otherwise double-count across repeated snapshots.
func (s *PrometheusSink) ObservePool(pool string, snap PoolStats) {
	s.poolConns.WithLabelValues(pool, "total").Set(float64(snap.TotalConns))
	s.poolConns.WithLabelValues(pool, "active").Set(float64(snap.ActiveConns))
	s.poolConns.WithLabelValues(pool, "idle").Set(float64(snap.IdleConns))
	s.poolCreated.WithLabelValues(pool).Set(float64(snap.CreatedConns))
	s.poolErrors.WithLabelValues(pool).Set(float64(snap.AcquireErrors))
	s.poolWaitNs.WithLabelValues(pool).Set(float64(snap.AcquireWaitTimeNs))
}

// ObserveRequests records a RequestStats snapshot for the named pool.
func (s *PrometheusSink) ObserveRequests(pool string, snap RequestStats) {
	s.reqReplies.WithLabelValues(pool).Add(float64(snap.Replies))
	s.reqErrors.WithLabelValues(pool).Add(float64(snap.Errors))
	s.reqTimeouts.WithLabelValues(pool).Add(float64(snap.TimeoutErrors))
	if snap.Replies > 0 {
		avg := float64(snap.TotalLatencyNs) / float64(snap.Replies)
		s.reqLatencyAvg.WithLabelValues(pool).Set(avg)
	}
}
