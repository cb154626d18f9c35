// Package metrics holds the Prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mirror job outcomes.
const (
	MirrorOK      = "ok"
	MirrorFailed  = "failed"
	MirrorDropped = "dropped"
)

// Metrics is the set of collectors for one server instance.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploadedFiles   prometheus.Counter
	uploadedBytes   prometheus.Counter
	mirrorJobs      *prometheus.CounterVec
	mirrorDuration  prometheus.Histogram
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filehost",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "filehost",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		uploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "filehost",
			Name:      "uploaded_files_total",
			Help:      "Files stored through the upload endpoint.",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "filehost",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes stored through the upload endpoint.",
		}),
		mirrorJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filehost",
			Subsystem: "mirror",
			Name:      "jobs_total",
			Help:      "Mirror jobs by outcome (ok, failed, dropped).",
		}, []string{"result"}),
		mirrorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "filehost",
			Subsystem: "mirror",
			Name:      "job_duration_seconds",
			Help:      "Time spent copying one file to the mirror.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.uploadedFiles,
		m.uploadedBytes,
		m.mirrorJobs,
		m.mirrorDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// MirrorJobs returns the mirror job counter, labelled by result.
func (m *Metrics) MirrorJobs() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.mirrorJobs
}

func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpload(files int, bytes int64) {
	if m == nil {
		return
	}
	m.uploadedFiles.Add(float64(files))
	m.uploadedBytes.Add(float64(bytes))
}

func (m *Metrics) ObserveMirrorJob(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.mirrorJobs.WithLabelValues(result).Inc()
	if result != MirrorDropped {
		m.mirrorDuration.Observe(d.Seconds())
	}
}
