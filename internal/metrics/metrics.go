// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CatalogLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kochizu_catalog_loads_total",
		Help: "Catalog documents loaded, by result",
	}, []string{"result"})
	ResolvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kochizu_resolves_total",
		Help: "Tile resolutions, by mode and outcome (era, latest, unknown_mode)",
	}, []string{"mode", "outcome"})
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kochizu_upstream_requests_total",
		Help: "Requests to GSI web services, by endpoint and result",
	}, []string{"endpoint", "result"})
	UpstreamDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kochizu_upstream_duration_ms",
		Help:    "GSI web service call duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 3000},
	}, []string{"endpoint"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kochizu_cache_hits_total",
		Help: "Upstream response cache hits, by backend",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kochizu_cache_misses_total",
		Help: "Upstream response cache misses, by backend",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(CatalogLoadsTotal)
	prometheus.MustRegister(ResolvesTotal)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler exposes the registered collectors for Prometheus scraping.
func Handler() http.Handler { return promhttp.Handler() }
