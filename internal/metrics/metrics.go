package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for ingestion and context assembly.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	IngestRunsTotal      *prometheus.CounterVec
	IngestFilesTotal     *prometheus.CounterVec
	IngestChunksTotal    *prometheus.CounterVec
	IngestDuration       prometheus.Histogram
	ContextAssemblyTotal *prometheus.CounterVec
	ContextBytes         prometheus.Histogram
	GenerationTotal      *prometheus.CounterVec
}

// New registers the metrics once per process and returns them.
//
// Metrics:
//   - stackmemory_ingest_runs_total{result}
//   - stackmemory_ingest_files_total{outcome} (selected, skipped, unchanged)
//   - stackmemory_ingest_chunks_total{outcome} (stored, failed)
//   - stackmemory_ingest_duration_seconds
//   - stackmemory_context_assembly_total{task,truncated}
//   - stackmemory_context_bytes
//   - stackmemory_generation_total{model,result}
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			IngestRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stackmemory_ingest_runs_total",
					Help: "Total number of ingestion runs",
				},
				[]string{"result"},
			),
			IngestFilesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stackmemory_ingest_files_total",
					Help: "Files processed by ingestion, by outcome",
				},
				[]string{"outcome"},
			),
			IngestChunksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stackmemory_ingest_chunks_total",
					Help: "Chunks processed by ingestion, by outcome",
				},
				[]string{"outcome"},
			),
			IngestDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "stackmemory_ingest_duration_seconds",
					Help:    "Duration of ingestion runs in seconds",
					Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 55, 120},
				},
			),
			ContextAssemblyTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stackmemory_context_assembly_total",
					Help: "Context bundles assembled, by task and truncation",
				},
				[]string{"task", "truncated"},
			),
			ContextBytes: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "stackmemory_context_bytes",
					Help:    "Size of assembled context bundles in bytes",
					Buckets: prometheus.ExponentialBuckets(1024, 2, 8),
				},
			),
			GenerationTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stackmemory_generation_total",
					Help: "Text generation calls, by model and result",
				},
				[]string{"model", "result"},
			),
		}
	})
	return globalMetrics
}

// IngestRun records the totals of one ingestion run.
func (m *Metrics) IngestRun(err error, elapsed time.Duration, selected, skipped, unchanged, stored, failed int) {
	if m == nil {
		return
	}
	m.IngestRunsTotal.WithLabelValues(result(err)).Inc()
	m.IngestDuration.Observe(elapsed.Seconds())
	m.IngestFilesTotal.WithLabelValues("selected").Add(float64(selected))
	m.IngestFilesTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.IngestFilesTotal.WithLabelValues("unchanged").Add(float64(unchanged))
	m.IngestChunksTotal.WithLabelValues("stored").Add(float64(stored))
	m.IngestChunksTotal.WithLabelValues("failed").Add(float64(failed))
}

// ContextAssembled records one assembled bundle.
func (m *Metrics) ContextAssembled(task string, truncated bool, length int) {
	if m == nil {
		return
	}
	t := "false"
	if truncated {
		t = "true"
	}
	m.ContextAssemblyTotal.WithLabelValues(task, t).Inc()
	m.ContextBytes.Observe(float64(length))
}

// Generation records one generation attempt.
func (m *Metrics) Generation(model string, err error) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(model, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
