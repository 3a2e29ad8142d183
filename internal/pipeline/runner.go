package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/qcflow/internal/filter"
	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/qcflow/internal/ingest"
	"github.com/GriffinCanCode/qcflow/internal/qc"
	"github.com/GriffinCanCode/qcflow/internal/queue"
	"github.com/GriffinCanCode/qcflow/internal/record"
	"github.com/GriffinCanCode/qcflow/internal/shared/id"
	"github.com/GriffinCanCode/qcflow/internal/sink"
)

var ErrAlreadyRun = errors.New("pipeline has already been run")

// Config sizes the pipeline
type Config struct {
	Workers        int
	RawCapacity    int
	ResultCapacity int
	// IncludeInvalid also commits results that computed but found nothing
	// to report, e.g. a gap below the outage threshold.
	IncludeInvalid bool
}

// DefaultConfig returns a single worker pipeline
func DefaultConfig() Config {
	return Config{
		Workers:        1,
		RawCapacity:    1024,
		ResultCapacity: 1024,
	}
}

func (c Config) validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.RawCapacity < 1:
		return fmt.Errorf("raw queue capacity must be positive, got %d", c.RawCapacity)
	case c.ResultCapacity < 1:
		return fmt.Errorf("result queue capacity must be positive, got %d", c.ResultCapacity)
	}
	return nil
}

// Deps are the collaborators of a Runner
type Deps struct {
	Ingestor *ingest.Ingestor
	// Filter is applied per stream before QC. Nil runs QC on raw records.
	Filter filter.Filter
	Stage  *qc.Stage
	Sink   sink.Sink

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Runner runs one pipeline to completion.
type Runner struct {
	cfg      Config
	runID    id.RunID
	ingestor *ingest.Ingestor
	sink     sink.Sink
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	raw     []*queue.Bounded[*record.Record]
	results *queue.Bounded[*qc.Result]
	demuxes []*filter.Demultiplexer
	fwd     *forwarder

	started  atomic.Bool
	closeRaw sync.Once
}

// New builds the queues and one demultiplexer per worker. The first worker
// uses the template directly; the others get clones.
func New(cfg Config, deps Deps) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Ingestor == nil {
		return nil, errors.New("pipeline needs an ingestor")
	}
	if deps.Stage == nil {
		return nil, errors.New("pipeline needs a QC stage")
	}
	if deps.Sink == nil {
		deps.Sink = sink.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := &Runner{
		cfg:      cfg,
		runID:    id.NewRunID(),
		ingestor: deps.Ingestor,
		sink:     deps.Sink,
		metrics:  deps.Metrics,
		results:  queue.New[*qc.Result](cfg.ResultCapacity),
	}
	r.logger = deps.Logger.With(zap.String("run", r.runID.String()))
	r.fwd = &forwarder{
		results:        r.results,
		includeInvalid: cfg.IncludeInvalid,
		metrics:        deps.Metrics,
		logger:         r.logger,
	}

	// Subscribe before cloning so every per-stream pipeline inherits the
	// forwarder.
	deps.Stage.Subscribe(r.fwd)

	var template filter.Filter = deps.Stage
	if deps.Filter != nil {
		template = filter.Chain(deps.Filter, deps.Stage)
	}
	base := filter.NewDemultiplexer(template)

	r.raw = make([]*queue.Bounded[*record.Record], cfg.Workers)
	r.demuxes = make([]*filter.Demultiplexer, cfg.Workers)
	for i := range cfg.Workers {
		r.raw[i] = queue.New[*record.Record](cfg.RawCapacity)
		if i == 0 {
			r.demuxes[i] = base
		} else {
			r.demuxes[i] = base.CloneDemultiplexer()
		}
	}
	return r, nil
}

// RunID identifies this run in logs
func (r *Runner) RunID() id.RunID {
	return r.runID
}

// Run blocks until the source is exhausted and every result has been
// committed, or until a sink fails. Cancelling ctx stops ingest; records
// already queued are still processed and committed. A fatal source error is
// returned after the pipeline has drained.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	start := time.Now()
	r.logger.Info("Pipeline starting",
		zap.Int("workers", r.cfg.Workers),
		zap.Int("raw_capacity", r.cfg.RawCapacity),
		zap.Int("result_capacity", r.cfg.ResultCapacity))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.ingest(gctx)
		return nil
	})

	var workers sync.WaitGroup
	for i := range r.cfg.Workers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			r.work(i)
			return nil
		})
	}
	g.Go(func() error {
		workers.Wait()
		r.results.Close()
		return nil
	})

	// Commit writes outlive cancellation so buffered results are flushed on
	// shutdown.
	g.Go(func() error {
		return r.commit(context.WithoutCancel(ctx))
	})

	err := g.Wait()
	stats := r.ingestor.Stats()
	r.logger.Info("Pipeline stopped",
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("records", stats.Records),
		zap.Uint64("skipped", stats.Skipped),
		zap.Uint64("transient_errors", stats.Transient),
		zap.Uint64("dropped_results", r.fwd.dropped.Load()),
		zap.Error(err))
	if err != nil {
		return err
	}

	if err := r.ingestor.Err(); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

func (r *Runner) ingest(ctx context.Context) {
	defer r.stopIngest()

	for rec := range r.ingestor.All(ctx) {
		shard := shardFor(rec.Key, len(r.raw))
		q := r.raw[shard]
		if !q.Push(rec) {
			// closed by a failing commit stage
			return
		}
		r.metrics.SetQueueDepth(rawName(shard), q.Len())
	}
}

func (r *Runner) stopIngest() {
	r.closeRaw.Do(func() {
		for _, q := range r.raw {
			q.Close()
		}
	})
}

func (r *Runner) work(i int) {
	raw, demux := r.raw[i], r.demuxes[i]
	logger := r.logger.With(zap.Int("worker", i))
	logger.Debug("Worker started")

	processed := 0
	for {
		rec, err := raw.Pop()
		if err != nil {
			break
		}
		r.metrics.SetQueueDepth(rawName(i), raw.Len())
		r.metrics.IncProcessed(i)
		demux.Feed(rec)
		processed++
	}

	flushed := 0
	for demux.Flush() != nil {
		flushed++
	}
	logger.Debug("Worker drained", zap.Int("records", processed), zap.Int("flushed", flushed))
}

func (r *Runner) commit(ctx context.Context) error {
	var failed error
	committed := 0
	for {
		res, err := r.results.Pop()
		if err != nil {
			break
		}
		r.metrics.SetQueueDepth("results", r.results.Len())
		if failed != nil {
			continue
		}
		if err := r.sink.Write(ctx, res); err != nil {
			failed = fmt.Errorf("commit %s result for %s: %w", res.Check, res.Key, err)
			r.logger.Error("Commit failed, stopping ingest", zap.Error(err))
			// workers still drain what is queued; their results are
			// discarded here
			r.stopIngest()
			continue
		}
		committed++
	}

	if err := r.sink.Close(); err != nil && failed == nil {
		failed = fmt.Errorf("close sink: %w", err)
	}
	r.logger.Debug("Commit drained", zap.Int("results", committed))
	return failed
}

// QueueDepths returns the buffered count of every queue
func (r *Runner) QueueDepths() map[string]int {
	depths := make(map[string]int, len(r.raw)+1)
	for i, q := range r.raw {
		depths[rawName(i)] = q.Len()
	}
	depths["results"] = r.results.Len()
	return depths
}

// Dropped returns the number of results that could not be queued because
// the result queue was already closed.
func (r *Runner) Dropped() uint64 {
	return r.fwd.dropped.Load()
}

func shardFor(key record.StreamKey, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key.String()) % uint64(n))
}

func rawName(i int) string {
	return "raw-" + strconv.Itoa(i)
}
