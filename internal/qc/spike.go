package qc

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/qcflow/internal/filter"
	"github.com/GriffinCanCode/qcflow/internal/record"
)

// spikeFactor is the deviation from the mean, in RMS units, a sample must
// exceed to count as a spike.
const spikeFactor = 5.0

// Spike flags isolated samples where the signal reverses sharply and
// deviates from the mean by more than 5×RMS. After a spike, the next
// frequency/2 samples are skipped so one transient is counted once.
type Spike struct {
	HighPass bool
	Corner   float64 // Hz, used when HighPass is set
}

func NewSpike(highPass bool, corner float64) *Spike {
	return &Spike{HighPass: highPass, Corner: corner}
}

func (s *Spike) Name() string { return "spike" }

func (s *Spike) Compute(rec *record.Record, samples []float64) (Value, bool, error) {
	data := samples
	if s.HighPass {
		data = filter.HighPassSamples(samples, rec.Frequency, s.Corner)
	}
	if len(data) < 3 {
		return Value{}, false, ErrInsufficient
	}

	mean, variance := stat.PopMeanVariance(data, nil)
	rms := math.Sqrt(variance)
	limit := spikeFactor * rms
	// reversal strength: the product of neighbouring differences must be
	// below -rms²
	reversal := -variance

	spacing := int(rec.Frequency / 2)
	if spacing < 1 {
		spacing = 1
	}

	var anomalies []Anomaly
	for i := 1; i < len(data)-1; i++ {
		d1 := data[i] - data[i-1]
		d2 := data[i+1] - data[i]
		if d1*d2 < reversal && math.Abs(data[i]-mean) > limit {
			anomalies = append(anomalies, Anomaly{Time: rec.SampleTime(i), Value: samples[i]})
			i += spacing - 1
		}
	}

	return AnomalyValue(anomalies), len(anomalies) > 0, nil
}

func (s *Spike) Reset() {}

func (s *Spike) Clone() Computation {
	return NewSpike(s.HighPass, s.Corner)
}
