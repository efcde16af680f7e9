package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsService registers and exposes the domain counters. HTTP-level
// metrics live in the middleware; these track business events.
type MetricsService struct {
	formSaves     *prometheus.CounterVec
	navigations   *prometheus.CounterVec
	reportJobs    *prometheus.CounterVec
	uploadedFiles prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetricsService creates the service and registers its collectors on the
// given registry. A nil registry uses the default one.
func NewMetricsService(registry *prometheus.Registry) *MetricsService {
	s := &MetricsService{
		formSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pps_form_saves_total",
			Help: "Topic form saves grouped by resulting status.",
		}, []string{"status"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pps_navigations_total",
			Help: "Form navigation requests grouped by direction.",
		}, []string{"direction"}),
		reportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pps_report_jobs_total",
			Help: "Report jobs grouped by terminal status.",
		}, []string{"status"}),
		uploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pps_uploaded_files_total",
			Help: "Documents uploaded through the performance form.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pps_http_requests_total",
			Help: "HTTP requests grouped by method, route and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pps_http_request_duration_seconds",
			Help:    "HTTP request latency distribution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		registry: registry,
	}

	collectors := []prometheus.Collector{s.formSaves, s.navigations, s.reportJobs, s.uploadedFiles, s.httpRequests, s.httpDuration}
	for _, c := range collectors {
		if registry != nil {
			registry.MustRegister(c)
		} else {
			prometheus.MustRegister(c)
		}
	}
	return s
}

// RecordSave counts a save with its resulting status label.
func (s *MetricsService) RecordSave(status string) {
	if s == nil {
		return
	}
	s.formSaves.WithLabelValues(status).Inc()
}

// RecordNavigation counts a navigation request.
func (s *MetricsService) RecordNavigation(direction string) {
	if s == nil {
		return
	}
	s.navigations.WithLabelValues(direction).Inc()
}

// RecordReportJob counts a report job outcome.
func (s *MetricsService) RecordReportJob(status string) {
	if s == nil {
		return
	}
	s.reportJobs.WithLabelValues(status).Inc()
}

// RecordUpload counts a stored document.
func (s *MetricsService) RecordUpload() {
	if s == nil {
		return
	}
	s.uploadedFiles.Inc()
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	s.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
