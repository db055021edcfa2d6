package api

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/connectify/internal/api"

// Metrics records client-side request metrics.
//
// Counters are kept both as OpenTelemetry instruments (exported when telemetry
// is enabled) and as Prometheus collectors on a private registry, which the CLI
// can dump to a node_exporter textfile after a command finishes.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	uploadBytes prometheus.Counter

	otelRequests metric.Int64Counter
	otelDuration metric.Float64Histogram
}

// NewMetrics creates metrics using meter for the OTel instruments.
// A nil meter uses the global provider.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "connectify",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "API requests by route, method and outcome (HTTP status or \"network\")",
			},
			[]string{"route", "method", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "connectify",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request latency in seconds",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method"},
		),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "connectify",
			Subsystem: "api",
			Name:      "upload_bytes_total",
			Help:      "Bytes sent in multipart uploads",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.uploadBytes)

	var err error
	m.otelRequests, err = meter.Int64Counter(
		"connectify.api.requests_total",
		metric.WithDescription("API requests by route, method and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}
	m.otelDuration, err = meter.Float64Histogram(
		"connectify.api.request_duration_seconds",
		metric.WithDescription("API request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "network"
	if status > 0 {
		outcome = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	m.duration.WithLabelValues(route, method).Observe(d.Seconds())

	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	if m.otelRequests != nil {
		m.otelRequests.Add(ctx, 1, attrs)
	}
	if m.otelDuration != nil {
		m.otelDuration.Record(ctx, d.Seconds(), attrs)
	}
}

func (m *Metrics) addUploadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadBytes.Add(float64(n))
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// normalizeRoute replaces numeric path segments with {id} to keep label
// cardinality bounded: /posts/42/like/ -> /posts/{id}/like/.
func normalizeRoute(path string) string {
	if path == "" {
		return "/"
	}
	return numericSegment.ReplaceAllString(path, "/{id}$1")
}
