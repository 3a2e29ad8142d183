package qc

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/qcflow/internal/record"
	"github.com/GriffinCanCode/qcflow/internal/shared/id"
)

// ErrInsufficient is returned by a Computation that cannot produce a value
// from the samples it was given. The pipeline is left unset.
var ErrInsufficient = errors.New("insufficient samples")

// Computation is the check-specific part of a Pipeline. Compute is only
// called with a known sampling frequency and at least one sample; it returns
// the value and whether there is something to report, or an error when no
// value can be computed.
type Computation interface {
	Name() string
	Compute(rec *record.Record, samples []float64) (Value, bool, error)
	Reset()
	Clone() Computation
}

// Observer is notified after every Process call, on the processing
// goroutine. Implementations must not block and must be comparable (use
// pointer receivers); the pipeline de-duplicates subscribers by equality.
type Observer interface {
	OnUpdate(p *Pipeline)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCreator stamps results with a creator ID.
func WithCreator(creator string) Option {
	return func(p *Pipeline) { p.creator = creator }
}

// WithIDGenerator sets the generator used for result IDs.
func WithIDGenerator(g *id.Generator) Option {
	return func(p *Pipeline) { p.ids = g }
}

// WithClock sets the clock used for Result.Created.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs one check over the records of one stream. It is owned by a
// single goroutine and is not safe for concurrent use.
type Pipeline struct {
	comp    Computation
	creator string
	ids     *id.Generator
	now     func() time.Time

	observers []Observer

	result *Result
	set    bool
	valid  bool
}

// NewPipeline wraps comp.
func NewPipeline(comp Computation, opts ...Option) *Pipeline {
	p := &Pipeline{
		comp: comp,
		ids:  id.Default(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the check name
func (p *Pipeline) Name() string {
	return p.comp.Name()
}

// Process computes the check for rec. samples is usually rec.Samples but
// may be a pre-processed copy.
func (p *Pipeline) Process(rec *record.Record, samples []float64) {
	p.result = nil
	p.set = false
	p.valid = false

	if rec.Frequency > 0 && len(samples) > 0 {
		value, ok, err := p.comp.Compute(rec, samples)
		if err != nil {
			p.notify()
			return
		}
		p.result = &Result{
			ID:        p.ids.NewResultID(),
			Check:     p.comp.Name(),
			Key:       rec.Key,
			Start:     rec.Start,
			End:       rec.End(),
			Frequency: rec.Frequency,
			Value:     value,
			Valid:     ok,
			Creator:   p.creator,
			Created:   p.now(),
		}
		p.set = true
		p.valid = ok
	}

	p.notify()
}

func (p *Pipeline) notify() {
	for _, o := range p.observers {
		o.OnUpdate(p)
	}
}

// IsSet reports whether the last Process call produced a result.
func (p *Pipeline) IsSet() bool { return p.set }

// IsValid reports whether the last result carries something to report.
func (p *Pipeline) IsValid() bool { return p.valid }

// Result returns the last result, or nil when unset.
func (p *Pipeline) Result() *Result { return p.result }

// Subscribe adds o. It returns false if o is already subscribed.
func (p *Pipeline) Subscribe(o Observer) bool {
	for _, existing := range p.observers {
		if existing == o {
			return false
		}
	}
	p.observers = append(p.observers, o)
	return true
}

// Unsubscribe removes o. It returns false if o was not subscribed.
func (p *Pipeline) Unsubscribe(o Observer) bool {
	for i, existing := range p.observers {
		if existing == o {
			p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
			return true
		}
	}
	return false
}

// Observers returns the number of subscribers
func (p *Pipeline) Observers() int {
	return len(p.observers)
}

// Reset clears the carried-over check state and the last outcome.
func (p *Pipeline) Reset() {
	p.comp.Reset()
	p.result = nil
	p.set = false
	p.valid = false
}

// Clone returns a pipeline with fresh check state, the same options and the
// same subscribers.
func (p *Pipeline) Clone() *Pipeline {
	c := &Pipeline{
		comp:    p.comp.Clone(),
		creator: p.creator,
		ids:     p.ids,
		now:     p.now,
	}
	c.observers = append([]Observer(nil), p.observers...)
	return c
}
