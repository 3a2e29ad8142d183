package qc

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Params carries the tunables check factories read.
type Params struct {
	OutageThreshold time.Duration
	SpikeHighPass   bool
	SpikeCorner     float64
	GapTolerance    time.Duration
	Now             func() time.Time
}

// DefaultParams mirrors the configuration defaults.
func DefaultParams() Params {
	return Params{
		OutageThreshold: 1800 * time.Second,
		SpikeCorner:     0.1,
		Now:             time.Now,
	}
}

// Factory creates a fresh computation.
type Factory func(p Params) (Computation, error)

// Registry maps check names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding every built-in check.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("outage", func(p Params) (Computation, error) {
		if p.OutageThreshold < 0 {
			return nil, fmt.Errorf("outage threshold must not be negative: %s", p.OutageThreshold)
		}
		return NewOutage(p.OutageThreshold), nil
	})
	r.MustRegister("spike", func(p Params) (Computation, error) {
		if p.SpikeHighPass && p.SpikeCorner <= 0 {
			return nil, fmt.Errorf("spike high-pass corner must be positive: %v", p.SpikeCorner)
		}
		return NewSpike(p.SpikeHighPass, p.SpikeCorner), nil
	})
	r.MustRegister("gap", func(p Params) (Computation, error) {
		return NewGap(p.GapTolerance), nil
	})
	r.MustRegister("overlap", func(p Params) (Computation, error) {
		return NewOverlap(p.GapTolerance), nil
	})
	r.MustRegister("latency", func(p Params) (Computation, error) {
		return NewLatency(p.Now), nil
	})
	r.MustRegister("offset", func(Params) (Computation, error) {
		return Offset{}, nil
	})
	r.MustRegister("rms", func(Params) (Computation, error) {
		return RMS{}, nil
	})
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("check name cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("check %q: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("check %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register that panics on error
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Names returns the registered check names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds one computation.
func (r *Registry) Create(name string, p Params) (Computation, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown check %q", name)
	}
	comp, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("check %q: %w", name, err)
	}
	return comp, nil
}

// BuildStage creates a Stage with one pipeline per named check.
func (r *Registry) BuildStage(names []string, p Params, opts ...Option) (*Stage, error) {
	seen := make(map[string]bool, len(names))
	pipelines := make([]*Pipeline, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		comp, err := r.Create(name, p)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, NewPipeline(comp, opts...))
	}
	return NewStage(pipelines...), nil
}
