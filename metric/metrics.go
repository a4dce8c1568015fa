// Package metric provides the pipeline metrics registry. It wraps a
// private prometheus registry so repeated runs and tests never collide on
// the global default registry, and exposes an HTTP handler for the
// --metrics-listen endpoint.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics holds the counters and gauges of one pipeline run.
type PipelineMetrics struct {
	Produced      prometheus.Counter
	Emitted       prometheus.Counter
	Dropped       prometheus.Counter
	ModelErrors   prometheus.Counter
	MappingErrors prometheus.Counter
	FormatErrors  prometheus.Counter
	WriteSuccess  prometheus.Counter
	WriteFailure  prometheus.Counter

	ActiveProducers prometheus.Gauge
	QueueDepth      prometheus.Gauge

	BatchRecords prometheus.Histogram
}

// MetricsRegistry manages the prometheus registry and the pipeline metrics.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Pipeline           *PipelineMetrics
}

// NewMetricsRegistry creates a registry with the pipeline metrics and Go
// runtime collectors registered.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()

	p := &PipelineMetrics{
		Produced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_records_produced_total",
			Help: "Records drawn from models, before mapping drops.",
		}),
		Emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_records_emitted_total",
			Help: "Records confirmed written to the sink.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_records_dropped_total",
			Help: "Records dropped by mappings.",
		}),
		ModelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_model_errors_total",
			Help: "Failed model.Next calls.",
		}),
		MappingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_mapping_errors_total",
			Help: "Failed mapping applications.",
		}),
		FormatErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_format_errors_total",
			Help: "Failed batch serializations.",
		}),
		WriteSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_writes_success_total",
			Help: "Batches confirmed by the medium.",
		}),
		WriteFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avalon_writes_failure_total",
			Help: "Batches lost after medium retries.",
		}),
		ActiveProducers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avalon_active_producers",
			Help: "Producer workers not yet retired.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avalon_writer_queue_depth",
			Help: "Batches waiting for a writer slot.",
		}),
		BatchRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "avalon_batch_records",
			Help:    "Records per dispatched batch.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	reg.MustRegister(
		p.Produced, p.Emitted, p.Dropped,
		p.ModelErrors, p.MappingErrors, p.FormatErrors,
		p.WriteSuccess, p.WriteFailure,
		p.ActiveProducers, p.QueueDepth, p.BatchRecords,
	)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsRegistry{
		prometheusRegistry: reg,
		Pipeline:           p,
	}
}

// PrometheusRegistry returns the underlying prometheus registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (r *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
