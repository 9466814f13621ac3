package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns an http.Handler serving Prometheus metrics for the registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve starts a metrics listener on addr in a goroutine. Errors are returned
// on the channel; callers typically just log them.
func Serve(addr string, reg *prom.Registry) chan error {
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/metrics", HTTPHandler(reg))
	go func() {
		errCh <- http.ListenAndServe(addr, mux)
	}()
	return errCh
}
