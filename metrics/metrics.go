// Package metrics runs the Prometheus exposition endpoint every service
// binary serves on a dedicated listener, separate from the public API.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

// MetricsServer serves the /metrics endpoint on its own listener so that
// scrapes never compete with API traffic and the public router never
// exposes internals.
type MetricsServer struct {
	name string
	srv  *http.Server
}

// New creates a metrics server for the named component. The server is
// inert until ListenAndServe is called; an empty listenAddr is valid and
// means the caller will never start it.
func New(name, listenAddr string) (*MetricsServer, error) {
	if name == "" {
		return nil, errors.New("metrics: component name must not be empty")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})

	// Constant gauge so dashboards can tell which component and binary
	// version is exporting this endpoint.
	vmetrics.GetOrCreateGauge(fmt.Sprintf(`component_info{name=%q}`, name), func() float64 {
		return 1
	})

	return &MetricsServer{
		name: name,
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the exposition endpoint until Shutdown is
// called or the listener fails.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv.Addr == "" {
		return errors.New("metrics: no listen address configured")
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the exposition endpoint.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
