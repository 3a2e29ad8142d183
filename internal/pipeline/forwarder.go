package pipeline

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/qcflow/internal/qc"
	"github.com/GriffinCanCode/qcflow/internal/queue"
)

// forwarder is subscribed to every QC pipeline and pushes their results into
// the result queue. It is shared by all workers; OnUpdate touches only the
// queue, which is safe for concurrent use, and atomic counters.
type forwarder struct {
	results        *queue.Bounded[*qc.Result]
	includeInvalid bool
	metrics        *monitoring.Metrics
	logger         *zap.Logger
	dropped        atomic.Uint64
}

func (f *forwarder) OnUpdate(p *qc.Pipeline) {
	if !p.IsSet() {
		return
	}
	res := p.Result()
	f.metrics.RecordResult(res.Check, res.Valid)
	if !res.Valid && !f.includeInvalid {
		return
	}

	// blocks while the commit stage is behind
	if !f.results.Push(res) {
		f.dropped.Add(1)
		f.logger.Debug("Result queue closed, dropping result",
			zap.String("check", res.Check),
			zap.Stringer("stream", res.Key))
		return
	}
	f.metrics.SetQueueDepth("results", f.results.Len())
}
