package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

// ErrTransient marks a read error limited to one record. Sources wrap it,
// the ingestor skips the record and keeps reading.
var ErrTransient = errors.New("transient record error")

// Transientf formats an error that wraps ErrTransient.
func Transientf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// Source supplies records. ReadNext returns io.EOF once the stream is
// exhausted.
type Source interface {
	ReadNext(ctx context.Context) (*record.Record, error)
}

// Item is one scripted read outcome of a MemorySource.
type Item struct {
	Record *record.Record
	Err    error
}

// MemorySource replays a fixed sequence of outcomes, then io.EOF.
type MemorySource struct {
	mu     sync.Mutex
	items  []Item
	pos    int
	closed bool
}

// NewMemorySource replays records in order.
func NewMemorySource(records ...*record.Record) *MemorySource {
	items := make([]Item, len(records))
	for i, rec := range records {
		items[i] = Item{Record: rec}
	}
	return &MemorySource{items: items}
}

// NewScriptedSource replays records and errors in order.
func NewScriptedSource(items ...Item) *MemorySource {
	return &MemorySource{items: items}
}

func (s *MemorySource) ReadNext(ctx context.Context) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	if item.Err != nil {
		return nil, item.Err
	}
	return item.Record, nil
}

// Close makes every further read return io.EOF.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
