// Package metrics exposes the search lifecycle as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

const namespace = "rice_facets"

// Metrics holds all application metrics.
type Metrics struct {
	// Request lifecycle
	Requests        prometheus.Counter
	Results         prometheus.Counter
	StaleResponses  prometheus.Counter
	TransportErrors prometheus.Counter
	Latency         prometheus.Histogram

	// Navigation
	Navigations *prometheus.CounterVec // labels: outcome

	// Registry
	Widgets prometheus.Gauge

	// Bus metrics
	BusEventsPublished *prometheus.CounterVec   // labels: topic
	BusErrors          *prometheus.CounterVec   // labels: topic
	BusLatency         *prometheus.HistogramVec // labels: topic

	registry *prometheus.Registry
}

// New creates a metrics instance on its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the lifecycle metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Search requests issued.",
		}),
		Results: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Results applied to the widgets.",
		}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request was issued.",
		}),
		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Failed requests that were still the latest.",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from issuing a request to applying its result.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		Navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Navigation watcher ticks that acted on a changed fragment.",
		}, []string{"outcome"}),
		Widgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "widgets",
			Help:      "Registered widgets.",
		}),
		BusEventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_published_total",
			Help:      "Lifecycle events published.",
		}, []string{"topic"}),
		BusErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_errors_total",
			Help:      "Lifecycle events that failed to publish.",
		}, []string{"topic"}),
		BusLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_publish_duration_seconds",
			Help:      "Time spent publishing one event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		registry: reg,
	}

	reg.MustRegister(
		m.Requests, m.Results, m.StaleResponses, m.TransportErrors, m.Latency,
		m.Navigations, m.Widgets,
		m.BusEventsPublished, m.BusErrors, m.BusLatency,
	)
	return m
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RequestIssued counts an issued request.
func (m *Metrics) RequestIssued() { m.Requests.Inc() }

// ResultApplied counts an applied result and its latency.
func (m *Metrics) ResultApplied(latency time.Duration) {
	m.Results.Inc()
	m.Latency.Observe(latency.Seconds())
}

// StaleDiscarded counts a discarded response.
func (m *Metrics) StaleDiscarded() { m.StaleResponses.Inc() }

// TransportFailed counts a failed latest request.
func (m *Metrics) TransportFailed() { m.TransportErrors.Inc() }

// WidgetsRegistered sets the registered widget count.
func (m *Metrics) WidgetsRegistered(n int) { m.Widgets.Set(float64(n)) }

// Navigated counts a watcher tick that acted.
func (m *Metrics) Navigated(outcome string) { m.Navigations.WithLabelValues(outcome).Inc() }

// RecordBusPublish implements bus.MetricsRecorder.
func (m *Metrics) RecordBusPublish(topic string, latency time.Duration, err error) {
	m.BusLatency.WithLabelValues(topic).Observe(latency.Seconds())
	if err != nil {
		m.BusErrors.WithLabelValues(topic).Inc()
		return
	}
	m.BusEventsPublished.WithLabelValues(topic).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Mux routes /metrics and /healthz. Each wrap is applied to /metrics,
// outermost first.
func Mux(m *Metrics, wrap ...func(http.Handler) http.Handler) *http.ServeMux {
	h := m.Handler()
	for i := len(wrap) - 1; i >= 0; i-- {
		h = wrap[i](h)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// Serve exposes Mux on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics, log *logger.Logger, wrap ...func(http.Handler) http.Handler) error {
	if log == nil {
		log = logger.Discard()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           Mux(m, wrap...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
