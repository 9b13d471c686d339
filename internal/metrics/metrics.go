// Package metrics exposes Prometheus collectors for presence updates and
// the artwork cache. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presence"

// Metrics wraps the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	updatesTotal   prometheus.Counter
	clearsTotal    prometheus.Counter
	cacheRequests  *prometheus.CounterVec
	producerCalls  *prometheus.CounterVec
	produceSeconds prometheus.Histogram
	cacheEntries   *prometheus.GaugeVec
	pollErrors     prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	m := &Metrics{
		registry: registry,
		updatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Presence updates sent to sinks",
		}),
		clearsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clears_total",
			Help:      "Presence clears sent to sinks",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artwork_cache",
			Name:      "requests_total",
			Help:      "Artwork cache lookups by result",
		}, []string{"result"}),
		producerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artwork",
			Name:      "produce_total",
			Help:      "Artwork producer invocations by outcome",
		}, []string{"outcome"}),
		produceSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "artwork",
			Name:      "produce_seconds",
			Help:      "Artwork producer latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "artwork_cache",
			Name:      "entries",
			Help:      "Artwork cache entries by state",
		}, []string{"state"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Player polls that failed and were treated as stopped",
		}),
	}

	registry.MustRegister(
		m.updatesTotal,
		m.clearsTotal,
		m.cacheRequests,
		m.producerCalls,
		m.produceSeconds,
		m.cacheEntries,
		m.pollErrors,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) PresenceUpdated() {
	if m != nil {
		m.updatesTotal.Inc()
	}
}

func (m *Metrics) PresenceCleared() {
	if m != nil {
		m.clearsTotal.Inc()
	}
}

func (m *Metrics) PollFailed() {
	if m != nil {
		m.pollErrors.Inc()
	}
}

// CacheLookup records a cache lookup; result is "hit" or "miss".
func (m *Metrics) CacheLookup(result string) {
	if m != nil {
		m.cacheRequests.WithLabelValues(result).Inc()
	}
}

// Produced records one producer invocation.
func (m *Metrics) Produced(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.producerCalls.WithLabelValues(outcome).Inc()
	m.produceSeconds.Observe(d.Seconds())
}

// CacheEntries sets the entry gauges.
func (m *Metrics) CacheEntries(pending, ready, failed int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues("pending").Set(float64(pending))
	m.cacheEntries.WithLabelValues("ready").Set(float64(ready))
	m.cacheEntries.WithLabelValues("failed").Set(float64(failed))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
