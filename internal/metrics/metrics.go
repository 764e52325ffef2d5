// Package metrics holds the Prometheus collectors for imports, exports and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prodledger"

// Collector groups the service's metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ImportBatchesTotal *prometheus.CounterVec
	ImportRowsTotal    *prometheus.CounterVec
	ExportsTotal       *prometheus.CounterVec
	ExportRowsTotal    prometheus.Counter
}

// NewCollector registers every metric on a fresh registry, together with the
// Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "route"}),

		ImportBatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Import batches by outcome (completed or rejected before any row).",
		}, []string{"outcome"}),

		ImportRowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Imported spreadsheet rows by result.",
		}, []string{"result"}),

		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "files_total",
			Help:      "Generated workbooks by kind.",
		}, []string{"kind"}),

		ExportRowsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "rows_total",
			Help:      "Production rows written to exported workbooks.",
		}),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveImport records a finished import batch.
func (c *Collector) ObserveImport(inserted, failed, blank int) {
	if c == nil {
		return
	}
	c.ImportBatchesTotal.WithLabelValues("completed").Inc()
	c.ImportRowsTotal.WithLabelValues("inserted").Add(float64(inserted))
	c.ImportRowsTotal.WithLabelValues("failed").Add(float64(failed))
	c.ImportRowsTotal.WithLabelValues("blank").Add(float64(blank))
}

// ObserveImportRejected records a batch aborted before row processing.
func (c *Collector) ObserveImportRejected() {
	if c == nil {
		return
	}
	c.ImportBatchesTotal.WithLabelValues("rejected").Inc()
}

// ObserveExport records a generated workbook. kind is "productions" or
// "template".
func (c *Collector) ObserveExport(kind string, rows int) {
	if c == nil {
		return
	}
	c.ExportsTotal.WithLabelValues(kind).Inc()
	c.ExportRowsTotal.Add(float64(rows))
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
