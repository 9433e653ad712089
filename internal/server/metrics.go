package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry          *prometheus.Registry
	mintRequestsTotal *prometheus.CounterVec
	mintFailuresTotal *prometheus.CounterVec
	inflightMints     prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lunchpad_mint_requests_total",
		Help: "Total number of mint requests by outcome",
	}, []string{"status"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lunchpad_mint_failures_total",
		Help: "Mint request failures by stable reason code",
	}, []string{"reason"})

	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lunchpad_inflight_mints",
		Help: "Mint requests currently being processed",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(requests, failures, inflight)

	return &metricsRegistry{
		registry:          r,
		mintRequestsTotal: requests,
		mintFailuresTotal: failures,
		inflightMints:     inflight,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incRequest(status string) {
	m.mintRequestsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incFailure(reason string) {
	m.mintFailuresTotal.WithLabelValues(reason).Inc()
}
