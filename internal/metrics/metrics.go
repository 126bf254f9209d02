// Package metrics exposes Prometheus instrumentation for the traffic
// stats engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsMetrics counts reconciliation outcomes and snapshot cache traffic.
// It satisfies cache.Observer and the reconciler's pass observer.
type StatsMetrics struct {
	ridesProcessed prometheus.Counter
	ridesFailed    prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
}

// New registers the engine's collectors on reg and returns the handle.
func New(reg prometheus.Registerer) *StatsMetrics {
	m := &StatsMetrics{
		ridesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkops_reconcile_rides_processed_total",
			Help: "Rides successfully reconciled across all passes.",
		}),
		ridesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkops_reconcile_rides_failed_total",
			Help: "Rides that failed reconciliation across all passes.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkops_stat_cache_hits_total",
			Help: "Real-time snapshot cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkops_stat_cache_misses_total",
			Help: "Real-time snapshot cache misses.",
		}),
	}
	reg.MustRegister(m.ridesProcessed, m.ridesFailed, m.cacheHits, m.cacheMisses)
	return m
}

func (m *StatsMetrics) RideProcessed() { m.ridesProcessed.Inc() }
func (m *StatsMetrics) RideFailed()    { m.ridesFailed.Inc() }
func (m *StatsMetrics) CacheHit()      { m.cacheHits.Inc() }
func (m *StatsMetrics) CacheMiss()     { m.cacheMisses.Inc() }
