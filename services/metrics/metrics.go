// Package metricsvc holds the Prometheus collectors of the API and the domain services.
package metricsvc

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edufam/edufam/core/announcement"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/timetable"
	realtimesvc "github.com/edufam/edufam/services/realtime"
)

const namespace = "edufam"

type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	gradeTransitions       *prometheus.CounterVec
	timetablesGenerated    *prometheus.CounterVec
	timetableUnfilled      prometheus.Histogram
	announcementsPublished prometheus.Counter
	realtimeEvents         *prometheus.CounterVec
	rateLimited            *prometheus.CounterVec
}

var (
	_ grade.Metrics        = (*Metrics)(nil)
	_ timetable.Metrics    = (*Metrics)(nil)
	_ announcement.Metrics = (*Metrics)(nil)
	_ realtimesvc.Metrics  = (*Metrics)(nil)
)

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		gradeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grades",
			Name:      "transitioned_total",
			Help:      "Total number of grades moved through the approval workflow.",
		}, []string{"transition"}),
		timetablesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timetables",
			Name:      "generated_total",
			Help:      "Total number of generated class timetables.",
		}, []string{"preview"}),
		timetableUnfilled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "timetables",
			Name:      "unfilled_slots",
			Help:      "Slots left empty by the timetable generator.",
			Buckets:   prometheus.LinearBuckets(0, 5, 9),
		}),
		announcementsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announcements",
			Name:      "published_total",
			Help:      "Total number of announcements published by the scheduler.",
		}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Total number of realtime events fanned out locally.",
		}, []string{"channel"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests refused by a rate limiter.",
		}, []string{"limiter"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.gradeTransitions,
		m.timetablesGenerated,
		m.timetableUnfilled,
		m.announcementsPublished,
		m.realtimeEvents,
		m.rateLimited,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RequestStarted() { m.httpInFlight.Inc() }

// RequestDone records a finished request; path is the route template, not the raw URL.
func (m *Metrics) RequestDone(method, path string, status int, seconds float64) {
	m.httpInFlight.Dec()
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(seconds)
}

func (m *Metrics) RateLimited(limiter string) {
	m.rateLimited.WithLabelValues(limiter).Inc()
}

func (m *Metrics) GradeTransition(transition string, count int) {
	m.gradeTransitions.WithLabelValues(transition).Add(float64(count))
}

func (m *Metrics) TimetableGenerated(preview bool, unfilled int) {
	m.timetablesGenerated.WithLabelValues(strconv.FormatBool(preview)).Inc()
	m.timetableUnfilled.Observe(float64(unfilled))
}

func (m *Metrics) AnnouncementsPublished(count int) {
	m.announcementsPublished.Add(float64(count))
}

func (m *Metrics) EventPublished(channel string, _ int) {
	m.realtimeEvents.WithLabelValues(channel).Inc()
}
