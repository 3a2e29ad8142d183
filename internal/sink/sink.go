package sink

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/qcflow/internal/qc"
)

// Sink receives committed results.
type Sink interface {
	Write(ctx context.Context, res *qc.Result) error
	Close() error
}

// Discard drops every result
type Discard struct{}

func (Discard) Write(context.Context, *qc.Result) error { return nil }
func (Discard) Close() error                            { return nil }

// Multi fans a result out to every sink.
type Multi []Sink

func (m Multi) Write(ctx context.Context, res *qc.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type observed struct {
	name    string
	sink    Sink
	metrics *monitoring.Metrics
}

// Observe records write counts and latency of s under name.
func Observe(name string, s Sink, m *monitoring.Metrics) Sink {
	return &observed{name: name, sink: s, metrics: m}
}

func (o *observed) Write(ctx context.Context, res *qc.Result) error {
	timer := monitoring.NewTimer(o.metrics, o.name)
	err := o.sink.Write(ctx, res)
	timer.Stop(err)
	return err
}

func (o *observed) Close() error { return o.sink.Close() }

type bestEffort struct {
	name   string
	sink   Sink
	logger *zap.Logger
}

// BestEffort logs write and close errors of s instead of returning them, so
// an optional sink cannot stop the pipeline.
func BestEffort(name string, s Sink, logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &bestEffort{name: name, sink: s, logger: logger}
}

func (b *bestEffort) Write(ctx context.Context, res *qc.Result) error {
	if err := b.sink.Write(ctx, res); err != nil {
		b.logger.Warn("Sink write failed",
			zap.String("sink", b.name),
			zap.String("check", res.Check),
			zap.Stringer("stream", res.Key),
			zap.Error(err))
	}
	return nil
}

func (b *bestEffort) Close() error {
	if err := b.sink.Close(); err != nil {
		b.logger.Warn("Sink close failed", zap.String("sink", b.name), zap.Error(err))
	}
	return nil
}
