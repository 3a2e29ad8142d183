package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can run without a collector.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Ingest metrics
	RecordsIngested prometheus.Counter
	RecordsSkipped  prometheus.Counter
	IngestErrors    *prometheus.CounterVec

	// Worker metrics
	RecordsProcessed *prometheus.CounterVec
	QCResults        *prometheus.CounterVec
	QueueDepth       *prometheus.GaugeVec

	// Sink metrics
	SinkWrites   *prometheus.CounterVec
	SinkDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    prometheus.Counter

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	RecordsIngested int64   `json:"records_ingested"`
	RecordsSkipped  int64   `json:"records_skipped"`
	TransientErrors int64   `json:"transient_errors"`
	Results         int64   `json:"results"`
	ValidResults    int64   `json:"valid_results"`
	SinkFailures    int64   `json:"sink_failures"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics registers every collector on reg. Passing nil uses the
// default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qcflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RecordsIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qcflow_records_ingested_total",
				Help: "Records read from the source and accepted by the selector",
			},
		),
		RecordsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qcflow_records_skipped_total",
				Help: "Records rejected by the stream selector",
			},
		),
		IngestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcflow_ingest_errors_total",
				Help: "Source read errors by kind",
			},
			[]string{"kind"},
		),

		RecordsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcflow_records_processed_total",
				Help: "Records fed to a worker demultiplexer",
			},
			[]string{"worker"},
		),
		QCResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcflow_qc_results_total",
				Help: "QC results by check and validity",
			},
			[]string{"check", "valid"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qcflow_queue_depth",
				Help: "Buffered items per queue",
			},
			[]string{"queue"},
		),

		SinkWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qcflow_sink_writes_total",
				Help: "Sink writes by sink and status",
			},
			[]string{"sink", "status"},
		),
		SinkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qcflow_sink_write_duration_seconds",
				Help:    "Sink write duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"sink"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qcflow_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qcflow_ws_messages_total",
				Help: "Total number of WebSocket messages sent",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "qcflow_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// IncIngested counts an accepted record
func (m *Metrics) IncIngested() {
	if m == nil {
		return
	}
	m.RecordsIngested.Inc()
	m.mu.Lock()
	m.snapshot.RecordsIngested++
	m.mu.Unlock()
}

// IncSkipped counts a record dropped by the selector
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.RecordsSkipped.Inc()
	m.mu.Lock()
	m.snapshot.RecordsSkipped++
	m.mu.Unlock()
}

// RecordIngestError counts a source error. kind is "transient" or "fatal".
func (m *Metrics) RecordIngestError(kind string) {
	if m == nil {
		return
	}
	m.IngestErrors.WithLabelValues(kind).Inc()
	if kind == "transient" {
		m.mu.Lock()
		m.snapshot.TransientErrors++
		m.mu.Unlock()
	}
}

// IncProcessed counts a record fed to worker n
func (m *Metrics) IncProcessed(worker int) {
	if m == nil {
		return
	}
	m.RecordsProcessed.WithLabelValues(strconv.Itoa(worker)).Inc()
}

// RecordResult counts a QC result
func (m *Metrics) RecordResult(check string, valid bool) {
	if m == nil {
		return
	}
	m.QCResults.WithLabelValues(check, strconv.FormatBool(valid)).Inc()
	m.mu.Lock()
	m.snapshot.Results++
	if valid {
		m.snapshot.ValidResults++
	}
	m.mu.Unlock()
}

// SetQueueDepth sets the buffered count of a queue
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordSinkWrite records a sink write
func (m *Metrics) RecordSinkWrite(sink string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SinkWrites.WithLabelValues(sink, status).Inc()
	m.SinkDuration.WithLabelValues(sink).Observe(duration.Seconds())
	if err != nil {
		m.mu.Lock()
		m.snapshot.SinkFailures++
		m.mu.Unlock()
	}
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// IncWSMessages counts a message sent to a WebSocket client
func (m *Metrics) IncWSMessages() {
	if m == nil {
		return
	}
	m.WSMessages.Inc()
}

// Snapshot returns the current counters for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
