package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}

// InstrumentHandler wraps next with the in-flight gauge.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	if !c.config.IsEnabled() {
		return next
	}
	return promhttp.InstrumentHandlerInFlight(c.httpMetrics.inFlight, next)
}
