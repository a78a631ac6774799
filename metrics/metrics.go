// Package metrics exposes Prometheus metrics for the gateway on a dedicated
// listener, separate from the API server.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the /metrics endpoint.
type MetricsServer struct {
	srv *http.Server

	RequestsTotal     *prometheus.CounterVec
	AuthFailuresTotal *prometheus.CounterVec
	WalletsCreated    prometheus.Counter
	CosignerJoins     prometheus.Counter
}

// New creates a metrics server listening on addr. The namespace prefixes
// every metric name.
func New(namespace, addr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &MetricsServer{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		AuthFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected requests by pipeline stage.",
		}, []string{"stage"}),
		WalletsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallets_created_total",
			Help:      "Multisig wallets created.",
		}),
		CosignerJoins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cosigner_joins_total",
			Help:      "Successful cosigner joins.",
		}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	m.srv = &http.Server{Addr: addr, Handler: mux}

	return m, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
