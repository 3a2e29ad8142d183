package filter

import (
	"math"
	"time"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

// HighPass is a first-order recursive high-pass filter. State carries over
// between contiguous records; a change of sampling frequency or a gap larger
// than half a sample restarts it.
type HighPass struct {
	Corner float64 // corner frequency, Hz

	freq    float64
	next    time.Time
	prevIn  float64
	prevOut float64
	primed  bool
}

// NewHighPass creates a high-pass filter with the given corner frequency.
func NewHighPass(corner float64) *HighPass {
	return &HighPass{Corner: corner}
}

func (h *HighPass) Feed(rec *record.Record) *record.Record {
	if rec.Frequency <= 0 || h.Corner <= 0 {
		return rec
	}

	if h.primed && (rec.Frequency != h.freq || !contiguous(h.next, rec)) {
		h.Reset()
	}
	h.freq = rec.Frequency

	alpha := highPassAlpha(h.Corner, rec.Frequency)
	out := make([]float64, len(rec.Samples))
	for i, x := range rec.Samples {
		if !h.primed {
			h.prevIn = x
			h.primed = true
		}
		y := alpha * (h.prevOut + x - h.prevIn)
		h.prevIn, h.prevOut = x, y
		out[i] = y
	}

	h.next = rec.End()
	return rec.WithSamples(out)
}

// Flush has nothing to emit; output is produced per record.
func (h *HighPass) Flush() *record.Record { return nil }

func (h *HighPass) Reset() {
	h.prevIn, h.prevOut = 0, 0
	h.primed = false
	h.next = time.Time{}
}

func (h *HighPass) Clone() Filter {
	return NewHighPass(h.Corner)
}

// HighPassSamples filters a standalone buffer with fresh state.
func HighPassSamples(samples []float64, frequency, corner float64) []float64 {
	out := make([]float64, len(samples))
	if len(samples) == 0 || frequency <= 0 || corner <= 0 {
		copy(out, samples)
		return out
	}

	alpha := highPassAlpha(corner, frequency)
	prevIn, prevOut := samples[0], 0.0
	for i, x := range samples {
		y := alpha * (prevOut + x - prevIn)
		prevIn, prevOut = x, y
		out[i] = y
	}
	return out
}

func highPassAlpha(corner, frequency float64) float64 {
	rc := 1 / (2 * math.Pi * corner)
	dt := 1 / frequency
	return rc / (rc + dt)
}

// contiguous reports whether rec starts within half a sample of next.
func contiguous(next time.Time, rec *record.Record) bool {
	if next.IsZero() {
		return true
	}
	tolerance := record.SecondsToDuration(0.5 / rec.Frequency)
	diff := rec.Start.Sub(next)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
