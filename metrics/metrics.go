// Package metrics instruments a nutcache.Pool with Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/Keksclan/nutcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for the requests counter.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Collector owns the cache metrics. One Collector can instrument several
// pools; each is told apart by its pool label.
type Collector struct {
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	compute  *prometheus.HistogramVec
	ops      *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg. A nil reg
// registers with prometheus.DefaultRegisterer. When reg is also a
// prometheus.Gatherer (a *prometheus.Registry is), Handler serves it;
// otherwise Handler serves the default registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	c := &Collector{
		gatherer: gatherer,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutcache",
			Name:      "get_requests_total",
			Help:      "Get calls by pool and outcome (hit, miss, error).",
		}, []string{"pool", "outcome"}),
		compute: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nutcache",
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing values on a miss.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutcache",
			Name:      "operations_total",
			Help:      "Delete, Has and Clear calls by pool, operation and result.",
		}, []string{"pool", "op", "result"}),
	}
	for _, col := range []prometheus.Collector{c.requests, c.compute, c.ops} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Instrument wraps p so its operations are recorded under the pool label
// name.
func (c *Collector) Instrument(p nutcache.Pool, name string) nutcache.Pool {
	return &pool{next: p, name: name, c: c}
}

// Handler returns an http.Handler that serves the registry c was registered
// with.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

type pool struct {
	next nutcache.Pool
	name string
	c    *Collector
}

// timedFiller notes whether Compute ran and how long it took.
type timedFiller struct {
	nutcache.Filler
	computed bool
	took     time.Duration
}

func (f *timedFiller) Compute(ctx context.Context) ([]byte, nutcache.Expiry, error) {
	f.computed = true
	start := time.Now()
	data, exp, err := f.Filler.Compute(ctx)
	f.took = time.Since(start)
	return data, exp, err
}

func (p *pool) Get(ctx context.Context, key string, f nutcache.Filler) error {
	tf := &timedFiller{Filler: f}
	err := p.next.Get(ctx, key, tf)
	if tf.computed {
		p.c.compute.WithLabelValues(p.name).Observe(tf.took.Seconds())
	}
	switch {
	case err != nil:
		p.c.requests.WithLabelValues(p.name, OutcomeError).Inc()
	case tf.computed:
		p.c.requests.WithLabelValues(p.name, OutcomeMiss).Inc()
	default:
		p.c.requests.WithLabelValues(p.name, OutcomeHit).Inc()
	}
	return err
}

func (p *pool) Delete(ctx context.Context, key string) error {
	err := p.next.Delete(ctx, key)
	p.record("delete", err)
	return err
}

func (p *pool) Has(ctx context.Context, key string) (bool, error) {
	ok, err := p.next.Has(ctx, key)
	p.record("has", err)
	return ok, err
}

func (p *pool) Clear(ctx context.Context) error {
	err := p.next.Clear(ctx)
	p.record("clear", err)
	return err
}

func (p *pool) record(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.c.ops.WithLabelValues(p.name, op, result).Inc()
}
