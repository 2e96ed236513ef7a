// Package metrics exposes Prometheus collectors for the workshop daemon.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workshop"

// Metrics holds the daemon's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	courseLoads         *prometheus.CounterVec
	courseLoadDuration  prometheus.Histogram
	submissions         *prometheus.CounterVec
	carouselTransitions *prometheus.CounterVec
	requests            *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// New creates and registers the collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		courseLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "course_loads_total",
				Help:      "Total number of course loads by result",
			},
			[]string{"result"},
		),
		courseLoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "course_load_duration_seconds",
				Help:      "Duration of course fetch and compile",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of exercise submissions by result",
			},
			[]string{"result"},
		),
		carouselTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "carousel_transitions_total",
				Help:      "Total number of carousel slide transitions by input source",
			},
			[]string{"source"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.courseLoads,
		m.courseLoadDuration,
		m.submissions,
		m.carouselTransitions,
		m.requests,
		m.requestDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLoad counts a course load and records its duration.
func (m *Metrics) ObserveLoad(success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.courseLoads.WithLabelValues(result(success)).Inc()
	m.courseLoadDuration.Observe(d.Seconds())
}

// ObserveSubmission counts a submission.
func (m *Metrics) ObserveSubmission(passed bool) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(passResult(passed)).Inc()
}

// ObserveTransition counts a carousel transition started by source.
func (m *Metrics) ObserveTransition(source string) {
	if m == nil {
		return
	}
	m.carouselTransitions.WithLabelValues(source).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts a served request and records its duration. route is
// the matched mux pattern so that path parameters stay out of the labels.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func passResult(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
