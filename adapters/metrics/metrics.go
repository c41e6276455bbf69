// Package metrics provides Prometheus metrics collection for modelkit.
package metrics

import (
	"time"

	"github.com/artpar/modelkit/core/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modelkit"

// Collector holds all Prometheus metrics for modelkit. It implements
// model.Observer so models report into it directly.
type Collector struct {
	// Model metrics
	FieldChanges       *prometheus.CounterVec
	Validations        *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	InvalidFields      *prometheus.CounterVec

	// Record metrics
	RecordsLive prometheus.Gauge
	Commits     *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Schema metrics
	SchemaReloads      prometheus.Counter
	SchemaReloadErrors prometheus.Counter
	SchemasLoaded      prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		FieldChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "field_changes_total",
				Help:      "Debounced field change notifications",
			},
			[]string{"model", "field"},
		),
		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Model validations by outcome",
			},
			[]string{"model", "result"},
		),
		ValidationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Time for all field validators of a model to settle",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"model"},
		),
		InvalidFields: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalid_fields_total",
				Help:      "Fields reported invalid by validation",
			},
			[]string{"model"},
		),
		RecordsLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records_live",
				Help:      "Model instances currently held by the record service",
			},
		),
		Commits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Record commits by outcome",
			},
			[]string{"model", "result"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		SchemaReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reloads_total",
				Help:      "Total number of successful schema reloads",
			},
		),
		SchemaReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_reload_errors_total",
				Help:      "Total number of failed schema reloads",
			},
		),
		SchemasLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schemas_loaded",
				Help:      "Number of registered model schemas",
			},
		),
	}
}

// FieldChanged implements model.Observer.
func (c *Collector) FieldChanged(modelName, field string) {
	c.FieldChanges.WithLabelValues(modelName, field).Inc()
}

// Validated implements model.Observer.
func (c *Collector) Validated(modelName string, invalid int, elapsed time.Duration) {
	result := "valid"
	if invalid > 0 {
		result = "invalid"
		c.InvalidFields.WithLabelValues(modelName).Add(float64(invalid))
	}
	c.Validations.WithLabelValues(modelName, result).Inc()
	c.ValidationDuration.WithLabelValues(modelName).Observe(elapsed.Seconds())
}

// Committed counts a record commit by outcome.
func (c *Collector) Committed(modelName, result string) {
	c.Commits.WithLabelValues(modelName, result).Inc()
}

// StatusClass collapses an HTTP status code to 2xx, 4xx and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var _ model.Observer = (*Collector)(nil)
