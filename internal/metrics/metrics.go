/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// Provider is what the registry and the HTTP layer report to.
type Provider interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	IncHTTPRequestsInFlight()
	DecHTTPRequestsInFlight()
	RecordUpload(outcome, scopeKind string, duration time.Duration, sizeBytes int64)
	RecordAllocationRetry(scopeKind string)
	RecordArtifactOperation(backend, operation, status string, duration time.Duration)
	RecordError(component, errorCode, errorType string)
}

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Upload metrics
	UploadsTotal      *prometheus.CounterVec
	UploadDuration    *prometheus.HistogramVec
	UploadSizeBytes   prometheus.Histogram
	AllocationRetries *prometheus.CounterVec

	// Artifact backend metrics
	ArtifactOperationsTotal   *prometheus.CounterVec
	ArtifactOperationDuration *prometheus.HistogramVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var _ Provider = (*Metrics)(nil)

// NewMetrics creates all metrics and registers them with reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specregistry_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specregistry_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "specregistry_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specregistry_uploads_total",
				Help: "Total number of schema uploads by outcome",
			},
			[]string{"outcome", "scope"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specregistry_upload_duration_seconds",
				Help:    "Schema upload duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"outcome", "scope"},
		),
		UploadSizeBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "specregistry_upload_size_bytes",
				Help:    "Size of stored schema documents in bytes",
				Buckets: []float64{1024, 10240, 102400, 1048576, 10485760}, // 1KB to 10MB
			},
		),
		AllocationRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specregistry_version_allocation_retries_total",
				Help: "Total number of version allocations retried after a conflict",
			},
			[]string{"scope"},
		),

		ArtifactOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specregistry_artifact_operations_total",
				Help: "Total number of artifact backend operations",
			},
			[]string{"backend", "operation", "status"},
		),
		ArtifactOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specregistry_artifact_operation_duration_seconds",
				Help:    "Artifact backend operation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend", "operation"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specregistry_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "error_code", "error_type"},
		),
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	statusStr := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// IncHTTPRequestsInFlight increments in-flight HTTP requests
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements in-flight HTTP requests
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordUpload records one finished upload. sizeBytes is only observed for
// stored documents.
func (m *Metrics) RecordUpload(outcome, scopeKind string, duration time.Duration, sizeBytes int64) {
	m.UploadsTotal.WithLabelValues(outcome, scopeKind).Inc()
	m.UploadDuration.WithLabelValues(outcome, scopeKind).Observe(duration.Seconds())

	if outcome == OutcomeStored && sizeBytes > 0 {
		m.UploadSizeBytes.Observe(float64(sizeBytes))
	}
}

// RecordAllocationRetry counts one retried version allocation
func (m *Metrics) RecordAllocationRetry(scopeKind string) {
	m.AllocationRetries.WithLabelValues(scopeKind).Inc()
}

// RecordArtifactOperation records one artifact read or write
func (m *Metrics) RecordArtifactOperation(backend, operation, status string, duration time.Duration) {
	m.ArtifactOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.ArtifactOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordError records error metrics
func (m *Metrics) RecordError(component, errorCode, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorCode, errorType).Inc()
}

// Nop discards everything.
type Nop struct{}

var _ Provider = Nop{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration)          {}
func (Nop) IncHTTPRequestsInFlight()                                      {}
func (Nop) DecHTTPRequestsInFlight()                                      {}
func (Nop) RecordUpload(string, string, time.Duration, int64)             {}
func (Nop) RecordAllocationRetry(string)                                  {}
func (Nop) RecordArtifactOperation(string, string, string, time.Duration) {}
func (Nop) RecordError(string, string, string)                            {}

// Timer provides a convenient way to time operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed duration
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
