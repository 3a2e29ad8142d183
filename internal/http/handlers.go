package http

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/qcflow/internal/ingest"
	"github.com/GriffinCanCode/qcflow/internal/qc"
	"github.com/GriffinCanCode/qcflow/internal/shared/id"
	"github.com/GriffinCanCode/qcflow/internal/sink"
)

const version = "0.1.0"

// Results exposes committed QC results.
type Results interface {
	Latest(check string) []*qc.Result
	Streams() []sink.StreamStatus
}

// Pipeline exposes the state of a running pipeline.
type Pipeline interface {
	RunID() id.RunID
	QueueDepths() map[string]int
	Dropped() uint64
}

// Source exposes the progress of ingestion.
type Source interface {
	Stats() ingest.Stats
	Err() error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	results  Results
	pipeline Pipeline
	source   Source
	checks   []string
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
}

// NewHandlers creates a new handler set. checks lists the QC checks the
// pipeline runs.
func NewHandlers(
	results Results,
	pipeline Pipeline,
	source Source,
	checks []string,
	metrics *monitoring.Metrics,
	gatherer prometheus.Gatherer,
) *Handlers {
	return &Handlers{
		results:  results,
		pipeline: pipeline,
		source:   source,
		checks:   checks,
		metrics:  metrics,
		gatherer: gatherer,
	}
}

// Register mounts every handler on r.
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/streams", h.Streams)
	r.GET("/qc/checks", h.Checks)
	r.GET("/qc/latest", h.Latest)
	r.GET("/queues", h.Queues)
	r.GET("/metrics", h.Metrics)
	r.GET("/metrics/json", h.MetricsJSON)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "qcflow",
		"version": version,
	})
}

// Health reports pipeline progress. A fatal source error makes the service
// unhealthy; a shutdown does not.
func (h *Handlers) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	body := gin.H{
		"run":    h.pipeline.RunID(),
		"ingest": h.source.Stats(),
	}
	if err := h.source.Err(); err != nil && !errors.Is(err, context.Canceled) {
		status, code = "degraded", http.StatusServiceUnavailable
		body["error"] = err.Error()
	}
	body["status"] = status
	c.JSON(code, body)
}

// Streams lists every stream with committed results.
func (h *Handlers) Streams(c *gin.Context) {
	streams := h.results.Streams()
	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"count":   len(streams),
	})
}

// Checks lists the configured QC checks.
func (h *Handlers) Checks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"checks": h.checks})
}

// Latest returns the newest result per stream, optionally for one check.
func (h *Handlers) Latest(c *gin.Context) {
	check := c.Query("check")
	if check != "" && !slices.Contains(h.checks, check) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown check: " + check})
		return
	}
	results := h.results.Latest(check)
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// Queues reports the depth of every pipeline queue.
func (h *Handlers) Queues(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queues":  h.pipeline.QueueDepths(),
		"dropped": h.pipeline.Dropped(),
	})
}

// Metrics serves the Prometheus exposition format.
func (h *Handlers) Metrics(c *gin.Context) {
	promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}

// MetricsJSON serves a JSON summary of the counters.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
