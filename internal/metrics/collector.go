// Package metrics exposes Prometheus instrumentation for the pipeline and API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	PipelineRuns       *prometheus.CounterVec
	PipelineDuration   prometheus.Histogram
	TimeSlotsPersisted prometheus.Counter
	EventsIngested     *prometheus.CounterVec

	// Smart guess metrics
	SmartGuessLookups   *prometheus.CounterVec
	SmartGuessEvictions prometheus.Counter
	SmartGuessesPurged  prometheus.Counter
}

// NewCollector creates a collector backed by its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		PipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_run_duration_seconds",
				Help:      "Pipeline run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TimeSlotsPersisted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "time_slots_persisted_total",
				Help:      "Time slots written by the pipeline sink",
			},
		),
		EventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "track_events_ingested_total",
				Help:      "Track events accepted into the buffer",
			},
			[]string{"type"},
		),
		SmartGuessLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "smart_guess_lookups_total",
				Help:      "Smart guess lookups by result",
			},
			[]string{"result"},
		),
		SmartGuessEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "smart_guess_evictions_total",
				Help:      "Smart guesses deleted after reaching the strike limit",
			},
		),
		SmartGuessesPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "smart_guesses_purged_total",
				Help:      "Smart guesses deleted for being unused too long",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.PipelineRuns, c.PipelineDuration, c.TimeSlotsPersisted, c.EventsIngested,
		c.SmartGuessLookups, c.SmartGuessEvictions, c.SmartGuessesPurged,
	)
	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPipelineRun records one pipeline run outcome
func (c *Collector) RecordPipelineRun(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.PipelineRuns.WithLabelValues(status).Inc()
	c.PipelineDuration.Observe(duration.Seconds())
}

// RecordTimeSlotPersisted counts one slot written by the sink
func (c *Collector) RecordTimeSlotPersisted() {
	if c == nil {
		return
	}
	c.TimeSlotsPersisted.Inc()
}

// RecordEventIngested counts one buffered track event
func (c *Collector) RecordEventIngested(eventType string) {
	if c == nil {
		return
	}
	c.EventsIngested.WithLabelValues(eventType).Inc()
}

// RecordSmartGuessLookup counts a lookup as a hit or a miss
func (c *Collector) RecordSmartGuessLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.SmartGuessLookups.WithLabelValues(result).Inc()
}

// RecordSmartGuessEviction counts one strike-limit eviction
func (c *Collector) RecordSmartGuessEviction() {
	if c == nil {
		return
	}
	c.SmartGuessEvictions.Inc()
}

// RecordSmartGuessesPurged counts purged guesses
func (c *Collector) RecordSmartGuessesPurged(n int64) {
	if c == nil {
		return
	}
	c.SmartGuessesPurged.Add(float64(n))
}
