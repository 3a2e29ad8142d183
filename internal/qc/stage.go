package qc

import (
	"github.com/GriffinCanCode/qcflow/internal/filter"
	"github.com/GriffinCanCode/qcflow/internal/record"
)

// Stage runs a set of pipelines on every record of one stream and passes the
// record through unchanged. Used as (part of) a demultiplexer template, each
// stream gets its own independent pipelines.
type Stage struct {
	pipelines []*Pipeline
}

// NewStage bundles pipelines.
func NewStage(pipelines ...*Pipeline) *Stage {
	return &Stage{pipelines: pipelines}
}

// Pipelines returns the bundled pipelines
func (s *Stage) Pipelines() []*Pipeline {
	return s.pipelines
}

// Subscribe adds o to every pipeline. It returns false if o was already
// subscribed everywhere.
func (s *Stage) Subscribe(o Observer) bool {
	added := false
	for _, p := range s.pipelines {
		if p.Subscribe(o) {
			added = true
		}
	}
	return added
}

// Unsubscribe removes o from every pipeline.
func (s *Stage) Unsubscribe(o Observer) bool {
	removed := false
	for _, p := range s.pipelines {
		if p.Unsubscribe(o) {
			removed = true
		}
	}
	return removed
}

func (s *Stage) Feed(rec *record.Record) *record.Record {
	if rec == nil {
		return nil
	}
	for _, p := range s.pipelines {
		p.Process(rec, rec.Samples)
	}
	return rec
}

func (s *Stage) Flush() *record.Record { return nil }

func (s *Stage) Reset() {
	for _, p := range s.pipelines {
		p.Reset()
	}
}

func (s *Stage) Clone() filter.Filter {
	pipelines := make([]*Pipeline, len(s.pipelines))
	for i, p := range s.pipelines {
		pipelines[i] = p.Clone()
	}
	return NewStage(pipelines...)
}
