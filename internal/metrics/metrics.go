// Package metrics wires the engine's ambient observability surface to
// Prometheus. It is ambient infrastructure, independent of the policy
// and monitoring UI layered on top of the engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the counters/histograms components record into.
// Components hold a *Registry (or nil, in which case calls are no-ops)
// rather than reaching for prometheus's global default registry, so
// tests can construct isolated Registries.
type Registry struct {
	LockWaitSeconds      prometheus.Histogram
	DeadlocksTotal       prometheus.Counter
	MigrationBatches     prometheus.Counter
	MigrationRowsTotal   prometheus.Counter
	RouterCacheHits      prometheus.Counter
	RouterCacheMisses    prometheus.Counter
	DDLOperationsTotal   *prometheus.CounterVec
}

// New registers a fresh set of metrics against reg (pass
// prometheus.NewRegistry() in tests, prometheus.DefaultRegisterer in
// production).
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polystore",
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent blocked acquiring a lock.",
			Buckets:   prometheus.DefBuckets,
		}),
		DeadlocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polystore",
			Subsystem: "lock",
			Name:      "deadlocks_total",
			Help:      "Transactions aborted as a deadlock victim.",
		}),
		MigrationBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polystore",
			Subsystem: "migrator",
			Name:      "batches_total",
			Help:      "Data migration batches executed.",
		}),
		MigrationRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polystore",
			Subsystem: "migrator",
			Name:      "rows_total",
			Help:      "Rows moved by the data migrator.",
		}),
		RouterCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polystore",
			Subsystem: "router",
			Name:      "cache_hits_total",
			Help:      "Routed-plan cache hits.",
		}),
		RouterCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polystore",
			Subsystem: "router",
			Name:      "cache_misses_total",
			Help:      "Routed-plan cache misses.",
		}),
		DDLOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polystore",
			Subsystem: "ddl",
			Name:      "operations_total",
			Help:      "DDL operations executed, by operation name and outcome.",
		}, []string{"operation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.LockWaitSeconds, m.DeadlocksTotal, m.MigrationBatches,
			m.MigrationRowsTotal, m.RouterCacheHits, m.RouterCacheMisses,
			m.DDLOperationsTotal,
		)
	}
	return m
}
