// Package metrics exports catalogue access statistics to Prometheus.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robert-malhotra/go-velociraptor/catalogue"
	"github.com/robert-malhotra/go-velociraptor/registry"
)

// CatalogueObserver implements catalogue.Observer with Prometheus
// collectors. Field keys are reduced to their category to keep label
// cardinality bounded.
type CatalogueObserver struct {
	cache    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	warnings *prometheus.CounterVec
}

var _ catalogue.Observer = (*CatalogueObserver)(nil)

// NewCatalogueObserver creates the collectors and registers them on reg.
func NewCatalogueObserver(reg prometheus.Registerer) (*CatalogueObserver, error) {
	o := &CatalogueObserver{
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velociraptor_field_cache_total",
			Help: "Field accesses by category and cache result",
		}, []string{"category", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "velociraptor_field_read_seconds",
			Help:    "Latency of reading a field from the catalogue file",
			Buckets: prometheus.DefBuckets,
		}, []string{"category", "status"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "velociraptor_field_warnings_total",
			Help: "Fields loaded with a fallback, by kind",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{o.cache, o.latency, o.warnings} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func category(key string) string {
	c, _, _ := strings.Cut(key, ".")
	return c
}

func (o *CatalogueObserver) OnCacheHit(key string) {
	o.cache.WithLabelValues(category(key), "hit").Inc()
}

func (o *CatalogueObserver) OnCacheMiss(key string) {
	o.cache.WithLabelValues(category(key), "miss").Inc()
}

func (o *CatalogueObserver) OnRead(key string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	o.latency.WithLabelValues(category(key), status).Observe(d.Seconds())
}

func (o *CatalogueObserver) OnWarning(w registry.Warning) {
	o.warnings.WithLabelValues(w.Kind.String()).Inc()
}
