package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// FullPath keeps label cardinality bounded for unmatched routes
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures a sink write
type Timer struct {
	start   time.Time
	metrics *Metrics
	sink    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, sink string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		sink:    sink,
	}
}

// Stop records the duration and outcome
func (t *Timer) Stop(err error) {
	t.metrics.RecordSinkWrite(t.sink, err, time.Since(t.start))
}
