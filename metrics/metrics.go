// Package metrics exposes Prometheus collectors for the sync core.
//
// Collector implements both cache.Observer and mutation.Observer, so one
// value can be handed to the query cache and the coordinator:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	qc, _ := cache.New(store, loader, cache.WithObserver(m))
//	coord, _ := mutation.New(qc, router, registry, mutation.WithObserver(m))
//
// Metric families:
//   - fitsync_cache_reads_total{entity,kind,result}: hit or miss
//   - fitsync_cache_superseded_total{entity,kind}
//   - fitsync_cache_fetch_errors_total{entity,kind}
//   - fitsync_cache_invalidations_total{entity,kind}
//   - fitsync_mutation_total{entity,op,outcome}
//   - fitsync_mutation_duration_seconds{entity,op}
//   - fitsync_mutation_rollback_entries_total{entity,op}
package metrics

import (
	"time"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/mutation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fitsync"

// Collector records cache and mutation events.
type Collector struct {
	reads         *prometheus.CounterVec
	superseded    *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	invalidations *prometheus.CounterVec

	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	rollbackEntries  *prometheus.CounterVec
}

var (
	_ cache.Observer    = (*Collector)(nil)
	_ mutation.Observer = (*Collector)(nil)
)

// New registers the collectors with reg. A nil reg creates unregistered
// collectors.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		reads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reads_total",
			Help:      "Query cache reads by result (hit or miss)",
		}, []string{"entity", "kind", "result"}),
		superseded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "superseded_total",
			Help:      "Fetches discarded because the key was written while they were in flight",
		}, []string{"entity", "kind"}),
		fetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_errors_total",
			Help:      "Loader calls that returned an error",
		}, []string{"entity", "kind"}),
		invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache entries marked stale by invalidation",
		}, []string{"entity", "kind"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "total",
			Help:      "Mutations by outcome",
		}, []string{"entity", "op", "outcome"}),
		mutationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "duration_seconds",
			Help:      "Time from mutation start until it settled",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"entity", "op"}),
		rollbackEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "rollback_entries_total",
			Help:      "Cache entries restored by mutation rollbacks",
		}, []string{"entity", "op"}),
	}
}

func (c *Collector) Hit(key cache.QueryKey) {
	c.reads.WithLabelValues(string(key.Entity), string(key.Kind), "hit").Inc()
}

func (c *Collector) Miss(key cache.QueryKey) {
	c.reads.WithLabelValues(string(key.Entity), string(key.Kind), "miss").Inc()
}

func (c *Collector) Superseded(key cache.QueryKey) {
	c.superseded.WithLabelValues(string(key.Entity), string(key.Kind)).Inc()
}

func (c *Collector) FetchError(key cache.QueryKey, _ error) {
	c.fetchErrors.WithLabelValues(string(key.Entity), string(key.Kind)).Inc()
}

func (c *Collector) Invalidated(key cache.QueryKey) {
	c.invalidations.WithLabelValues(string(key.Entity), string(key.Kind)).Inc()
}

func (c *Collector) Settled(t entity.Type, op entity.Op, outcome mutation.Outcome, elapsed time.Duration) {
	c.mutations.WithLabelValues(string(t), string(op), string(outcome)).Inc()
	c.mutationDuration.WithLabelValues(string(t), string(op)).Observe(elapsed.Seconds())
}

func (c *Collector) RolledBack(t entity.Type, op entity.Op, entries int) {
	c.rollbackEntries.WithLabelValues(string(t), string(op)).Add(float64(entries))
}
