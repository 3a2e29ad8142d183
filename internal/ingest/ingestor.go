package ingest

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/qcflow/internal/record"
)

// Stats counts what the ingestor has seen so far.
type Stats struct {
	Records   uint64 `json:"records"`
	Skipped   uint64 `json:"skipped"`
	Transient uint64 `json:"transient"`
	Done      bool   `json:"done"`
}

// Option configures an Ingestor
type Option func(*Ingestor)

// WithSelector drops records that do not match sel.
func WithSelector(sel *Selector) Option {
	return func(in *Ingestor) { in.selector = sel }
}

// WithRate paces accepted records to perSecond with the given burst. A
// non-positive rate disables pacing.
func WithRate(perSecond float64, burst int) Option {
	return func(in *Ingestor) {
		if perSecond <= 0 {
			in.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		in.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(in *Ingestor) { in.logger = logger }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *monitoring.Metrics) Option {
	return func(in *Ingestor) { in.metrics = m }
}

// Ingestor pulls records from a Source, skipping transient errors. Once the
// source reports io.EOF or a fatal error, or the context passed to Next is
// cancelled, the ingestor is done for good.
type Ingestor struct {
	src      Source
	selector *Selector
	limiter  *rate.Limiter
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	// read serializes Next; mu guards the state below so Stats does not
	// wait on a blocked read.
	read  sync.Mutex
	mu    sync.Mutex
	done  bool
	err   error
	stats Stats
}

// New wraps src.
func New(src Source, opts ...Option) *Ingestor {
	in := &Ingestor{
		src:    src,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Next returns the next accepted record, or false once the sequence has
// ended.
func (in *Ingestor) Next(ctx context.Context) (*record.Record, bool) {
	in.read.Lock()
	defer in.read.Unlock()

	for !in.Done() {
		rec, err := in.src.ReadNext(ctx)
		switch {
		case err == nil && rec == nil:
			in.transient(errors.New("source returned an empty record"))
		case err == nil:
			if !in.selector.Match(rec) {
				in.count(func(s *Stats) { s.Skipped++ })
				in.metrics.IncSkipped()
				continue
			}
			if in.limiter != nil {
				if werr := in.limiter.Wait(ctx); werr != nil {
					in.finish(werr)
					return nil, false
				}
			}
			in.count(func(s *Stats) { s.Records++ })
			in.metrics.IncIngested()
			return rec, true
		case errors.Is(err, ErrTransient):
			in.transient(err)
		case errors.Is(err, io.EOF):
			in.finish(nil)
		default:
			in.finish(err)
		}
	}
	return nil, false
}

// All exposes the ingestor as a forward-only sequence. Ranging over it a
// second time after it ended yields nothing.
func (in *Ingestor) All(ctx context.Context) iter.Seq[*record.Record] {
	return func(yield func(*record.Record) bool) {
		for {
			rec, ok := in.Next(ctx)
			if !ok || !yield(rec) {
				return
			}
		}
	}
}

// Done reports whether the sequence has ended.
func (in *Ingestor) Done() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.done
}

// Err returns the error that ended the sequence. It is nil for a clean end
// of stream.
func (in *Ingestor) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

// Stats returns a copy of the counters
func (in *Ingestor) Stats() Stats {
	in.mu.Lock()
	defer in.mu.Unlock()
	s := in.stats
	s.Done = in.done
	return s
}

func (in *Ingestor) count(f func(*Stats)) {
	in.mu.Lock()
	f(&in.stats)
	in.mu.Unlock()
}

func (in *Ingestor) transient(err error) {
	in.count(func(s *Stats) { s.Transient++ })
	in.metrics.RecordIngestError("transient")
	in.logger.Warn("Skipping record", zap.Error(err))
}

func (in *Ingestor) finish(err error) {
	in.mu.Lock()
	in.done = true
	in.err = err
	records := in.stats.Records
	in.mu.Unlock()

	switch {
	case err == nil:
		in.logger.Info("Source exhausted", zap.Uint64("records", records))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		in.logger.Info("Ingest cancelled", zap.Error(err))
	default:
		in.metrics.RecordIngestError("fatal")
		in.logger.Error("Source failed", zap.Error(err))
	}

	if c, ok := in.src.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			in.logger.Warn("Failed to close source", zap.Error(cerr))
		}
	}
}
