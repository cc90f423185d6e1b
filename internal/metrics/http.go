package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus metrics HTTP handler. It serves all
// promauto-registered metrics.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
