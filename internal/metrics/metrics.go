// Package metrics exposes Prometheus collectors for redirect handling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/linktrail/internal/accounting"
)

const namespace = "linktrail"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	redirects *prometheus.CounterVec
	recorded  prometheus.Counter
	skipped   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect requests by outcome.",
		}, []string{"outcome"}),
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_recorded_total",
			Help:      "Visits accounted as new clicks.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_skipped_total",
			Help:      "Redirects that were not accounted, by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.redirects,
		m.recorded,
		m.skipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRedirect counts one handled redirect.
func (m *Metrics) ObserveRedirect(outcome accounting.Outcome) {
	switch outcome.Kind {
	case accounting.KindNotFound:
		m.redirects.WithLabelValues("not_found").Inc()

		return
	case accounting.KindGone:
		m.redirects.WithLabelValues("gone").Inc()

		return
	case accounting.KindRedirect:
		m.redirects.WithLabelValues("redirect").Inc()
	}

	switch {
	case outcome.Visit != nil:
		m.recorded.Inc()
	case outcome.Skipped != accounting.SkipNone:
		m.skipped.WithLabelValues(string(outcome.Skipped)).Inc()
	}
}

// ObserveUnavailable counts a redirect that failed because links could not be read.
func (m *Metrics) ObserveUnavailable() {
	m.redirects.WithLabelValues("unavailable").Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
