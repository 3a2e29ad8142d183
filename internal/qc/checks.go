package qc

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

// Gap reports a positive gap between consecutive records larger than
// Tolerance. A zero tolerance means half a sample period.
type Gap struct {
	Tolerance time.Duration

	seen    bool
	lastEnd time.Time
}

func NewGap(tolerance time.Duration) *Gap {
	return &Gap{Tolerance: tolerance}
}

func (g *Gap) Name() string { return "gap" }

func (g *Gap) Compute(rec *record.Record, _ []float64) (Value, bool, error) {
	prev, seen := g.lastEnd, g.seen
	g.lastEnd, g.seen = rec.End(), true
	if !seen {
		return Value{}, false, nil
	}

	gap := rec.Start.Sub(prev)
	if gap > tolerance(g.Tolerance, rec) {
		return GapValue(gap.Seconds()), true, nil
	}
	return Value{}, false, nil
}

func (g *Gap) Reset()             { g.seen = false; g.lastEnd = time.Time{} }
func (g *Gap) Clone() Computation { return NewGap(g.Tolerance) }

// Overlap reports records starting before the previous record ended.
type Overlap struct {
	Tolerance time.Duration

	seen    bool
	lastEnd time.Time
}

func NewOverlap(tolerance time.Duration) *Overlap {
	return &Overlap{Tolerance: tolerance}
}

func (o *Overlap) Name() string { return "overlap" }

func (o *Overlap) Compute(rec *record.Record, _ []float64) (Value, bool, error) {
	prev, seen := o.lastEnd, o.seen
	o.lastEnd, o.seen = rec.End(), true
	if !seen {
		return Value{}, false, nil
	}

	overlap := prev.Sub(rec.Start)
	if overlap > tolerance(o.Tolerance, rec) {
		return ScalarValue(overlap.Seconds()), true, nil
	}
	return Value{}, false, nil
}

func (o *Overlap) Reset()             { o.seen = false; o.lastEnd = time.Time{} }
func (o *Overlap) Clone() Computation { return NewOverlap(o.Tolerance) }

func tolerance(configured time.Duration, rec *record.Record) time.Duration {
	if configured > 0 {
		return configured
	}
	return record.SecondsToDuration(0.5 / rec.Frequency)
}

// Latency reports how far the record end lags the wall clock, in seconds.
type Latency struct {
	Now func() time.Time
}

func NewLatency(now func() time.Time) *Latency {
	if now == nil {
		now = time.Now
	}
	return &Latency{Now: now}
}

func (l *Latency) Name() string { return "latency" }

func (l *Latency) Compute(rec *record.Record, _ []float64) (Value, bool, error) {
	return ScalarValue(l.Now().Sub(rec.End()).Seconds()), true, nil
}

func (l *Latency) Reset()             {}
func (l *Latency) Clone() Computation { return NewLatency(l.Now) }

// Offset reports the mean of the samples.
type Offset struct{}

func (Offset) Name() string { return "offset" }

func (Offset) Compute(_ *record.Record, samples []float64) (Value, bool, error) {
	return ScalarValue(stat.Mean(samples, nil)), true, nil
}

func (Offset) Reset()             {}
func (Offset) Clone() Computation { return Offset{} }

// RMS reports the root mean square of the samples about their mean.
type RMS struct{}

func (RMS) Name() string { return "rms" }

func (RMS) Compute(_ *record.Record, samples []float64) (Value, bool, error) {
	_, variance := stat.PopMeanVariance(samples, nil)
	return ScalarValue(math.Sqrt(variance)), true, nil
}

func (RMS) Reset()             {}
func (RMS) Clone() Computation { return RMS{} }
