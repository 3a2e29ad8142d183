package filter

import "github.com/GriffinCanCode/qcflow/internal/record"

// Filter processes the records of one stream. Feed and Flush return nil when
// no output is available. Flush must keep returning nil once drained.
type Filter interface {
	Feed(rec *record.Record) *record.Record
	Flush() *record.Record
	Reset()
	Clone() Filter
}

// Chain composes filters so that each stage feeds the next.
func Chain(stages ...Filter) Filter {
	return &chain{stages: stages}
}

type chain struct {
	stages []Filter
}

func (c *chain) Feed(rec *record.Record) *record.Record {
	return c.feedFrom(0, rec)
}

func (c *chain) feedFrom(i int, rec *record.Record) *record.Record {
	for ; i < len(c.stages) && rec != nil; i++ {
		rec = c.stages[i].Feed(rec)
	}
	return rec
}

// Flush drains stages in order, pushing each flushed record through the
// remaining stages before asking the next stage to flush.
func (c *chain) Flush() *record.Record {
	for i, stage := range c.stages {
		for out := stage.Flush(); out != nil; out = stage.Flush() {
			if res := c.feedFrom(i+1, out); res != nil {
				return res
			}
		}
	}
	return nil
}

func (c *chain) Reset() {
	for _, stage := range c.stages {
		stage.Reset()
	}
}

func (c *chain) Clone() Filter {
	stages := make([]Filter, len(c.stages))
	for i, stage := range c.stages {
		stages[i] = stage.Clone()
	}
	return &chain{stages: stages}
}
