package filter

import "github.com/GriffinCanCode/qcflow/internal/record"

// Gain multiplies every sample by Factor.
type Gain struct {
	Factor float64
}

func NewGain(factor float64) *Gain {
	return &Gain{Factor: factor}
}

func (g *Gain) Feed(rec *record.Record) *record.Record {
	out := make([]float64, len(rec.Samples))
	for i, x := range rec.Samples {
		out[i] = x * g.Factor
	}
	return rec.WithSamples(out)
}

func (g *Gain) Flush() *record.Record { return nil }
func (g *Gain) Reset()                {}
func (g *Gain) Clone() Filter         { return NewGain(g.Factor) }
