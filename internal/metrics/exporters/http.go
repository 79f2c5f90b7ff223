// Package exporters provides the HTTP exporter for executor metrics.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves every promauto-registered metric from the default
// registry, plus promhttp's own scrape counters.
func HTTPHandler() http.Handler {
	return GathererHandler(prometheus.DefaultGatherer, prometheus.DefaultRegisterer)
}

// GathererHandler serves the metrics of g. Scrape errors are reported in
// the response and the remaining metrics are still served. If reg is not
// nil the handler is instrumented against it.
func GathererHandler(g prometheus.Gatherer, reg prometheus.Registerer) http.Handler {
	h := promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
	if reg == nil {
		return h
	}
	return promhttp.InstrumentMetricHandler(reg, h)
}
