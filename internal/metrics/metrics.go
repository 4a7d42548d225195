// Package metrics exports revalidation outcomes to Prometheus
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts fetch outcomes. It satisfies revalidate.Metrics.
type Collector struct {
	registry  *prometheus.Registry
	fetches   *prometheus.CounterVec
	coalesced prometheus.Counter
}

// NewCollector creates a collector with its own registry, so several
// collectors can coexist in one process (tests, multiple servers)
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "otakulist",
			Name:      "fetches_total",
			Help:      "Conditional fetches by outcome.",
		}, []string{"outcome"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "otakulist",
			Name:      "fetches_coalesced_total",
			Help:      "Fetches answered by a request already in flight.",
		}),
	}
	c.registry.MustRegister(c.fetches, c.coalesced)
	c.registry.MustRegister(collectors.NewGoCollector())
	return c
}

func (c *Collector) Fresh()       { c.fetches.WithLabelValues("fresh").Inc() }
func (c *Collector) NotModified() { c.fetches.WithLabelValues("not_modified").Inc() }
func (c *Collector) Failed()      { c.fetches.WithLabelValues("failed").Inc() }
func (c *Collector) Coalesced()   { c.coalesced.Inc() }

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
