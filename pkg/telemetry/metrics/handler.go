package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing the collector's registry in
// the Prometheus exposition format.
//
// The handler is mounted on the dedicated metrics listener, never on the
// bridge port: the bridge port forwards every unrecognized request to the
// provider, so a /metrics route there would shadow provider paths.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
