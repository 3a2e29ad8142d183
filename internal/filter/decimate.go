package filter

import (
	"time"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

// Decimate keeps every Factor-th sample and emits records of at least
// BlockSize output samples. Samples still buffered are emitted by Flush.
type Decimate struct {
	Factor    int
	BlockSize int

	key    record.StreamKey
	freq   float64
	phase  int
	next   time.Time // expected start of the next input record
	start  time.Time // time of the first buffered output sample
	buffer []float64
}

// NewDecimate creates a decimator. Factor and blockSize below one are
// treated as one.
func NewDecimate(factor, blockSize int) *Decimate {
	if factor < 1 {
		factor = 1
	}
	if blockSize < 1 {
		blockSize = 1
	}
	return &Decimate{Factor: factor, BlockSize: blockSize}
}

func (d *Decimate) Feed(rec *record.Record) *record.Record {
	if rec.Frequency <= 0 {
		return nil
	}

	// a discontinuity closes the current block and restarts the phase
	var pending *record.Record
	if d.freq != 0 && (rec.Frequency != d.freq || !contiguous(d.next, rec)) {
		if len(d.buffer) > 0 {
			pending = d.take()
		}
		d.phase = 0
	}
	d.key = rec.Key
	d.freq = rec.Frequency

	for i, x := range rec.Samples {
		if d.phase == 0 {
			if len(d.buffer) == 0 {
				d.start = rec.SampleTime(i)
			}
			d.buffer = append(d.buffer, x)
		}
		d.phase = (d.phase + 1) % d.Factor
	}
	d.next = rec.End()

	if pending != nil {
		return pending
	}
	if len(d.buffer) >= d.BlockSize {
		return d.take()
	}
	return nil
}

func (d *Decimate) take() *record.Record {
	out := &record.Record{
		Key:       d.key,
		Start:     d.start,
		Frequency: d.freq / float64(d.Factor),
		Samples:   d.buffer,
	}
	d.buffer = nil
	return out
}

// Flush emits the buffered tail once.
func (d *Decimate) Flush() *record.Record {
	if len(d.buffer) == 0 {
		return nil
	}
	return d.take()
}

func (d *Decimate) Reset() {
	d.buffer = nil
	d.phase = 0
	d.freq = 0
	d.next = time.Time{}
	d.start = time.Time{}
}

func (d *Decimate) Clone() Filter {
	return NewDecimate(d.Factor, d.BlockSize)
}
