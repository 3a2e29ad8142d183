package qc

import (
	"time"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

// Outage reports the gap between the end of the most recent data and the
// start of the current record when it reaches Threshold. Records may arrive
// out of order; the reference end is the later of the previous record's end
// and the latest end seen so far.
type Outage struct {
	Threshold time.Duration

	seen    bool
	lastEnd time.Time // previous record
	recent  time.Time // latest end seen
}

func NewOutage(threshold time.Duration) *Outage {
	return &Outage{Threshold: threshold}
}

func (o *Outage) Name() string { return "outage" }

func (o *Outage) Compute(rec *record.Record, _ []float64) (Value, bool, error) {
	end := rec.End()
	if !o.seen {
		o.seen = true
		o.lastEnd = end
		o.recent = end
		return Value{}, false, nil
	}

	ref := o.lastEnd
	if o.recent.After(ref) {
		ref = o.recent
	}
	gap := rec.Start.Sub(ref)

	o.lastEnd = end
	if end.After(o.recent) {
		o.recent = end
	}

	if gap >= o.Threshold {
		return GapValue(gap.Seconds()), true, nil
	}
	return Value{}, false, nil
}

func (o *Outage) Reset() {
	o.seen = false
	o.lastEnd = time.Time{}
	o.recent = time.Time{}
}

func (o *Outage) Clone() Computation {
	return NewOutage(o.Threshold)
}
