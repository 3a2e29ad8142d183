package sink

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/qcflow/internal/qc"
	"github.com/GriffinCanCode/qcflow/internal/record"
)

// StreamStatus summarizes what has been committed for one stream.
type StreamStatus struct {
	Key      record.StreamKey `json:"stream"`
	LastEnd  time.Time        `json:"last_end"`
	Results  uint64           `json:"results"`
	Valid    uint64           `json:"valid"`
	LastSeen time.Time        `json:"last_seen"`
}

type latestKey struct {
	key   record.StreamKey
	check string
}

// Store keeps the latest result per stream and check for inspection. It is
// safe for concurrent readers while the commit stage writes.
type Store struct {
	mu      sync.RWMutex
	latest  map[latestKey]*qc.Result
	streams map[record.StreamKey]*StreamStatus
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		latest:  make(map[latestKey]*qc.Result),
		streams: make(map[record.StreamKey]*StreamStatus),
		now:     time.Now,
	}
}

func (s *Store) Write(_ context.Context, res *qc.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[latestKey{res.Key, res.Check}] = res

	st, ok := s.streams[res.Key]
	if !ok {
		st = &StreamStatus{Key: res.Key}
		s.streams[res.Key] = st
	}
	st.Results++
	if res.Valid {
		st.Valid++
	}
	if res.End.After(st.LastEnd) {
		st.LastEnd = res.End
	}
	st.LastSeen = s.now()
	return nil
}

func (s *Store) Close() error { return nil }

// Latest returns the newest result per stream and check, ordered by stream
// then check. An empty check matches all checks.
func (s *Store) Latest(check string) []*qc.Result {
	s.mu.RLock()
	out := make([]*qc.Result, 0, len(s.latest))
	for k, res := range s.latest {
		if check == "" || k.check == check {
			out = append(out, res)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key.Less(out[j].Key)
		}
		return out[i].Check < out[j].Check
	})
	return out
}

// Streams returns one status per stream, ordered by key.
func (s *Store) Streams() []StreamStatus {
	s.mu.RLock()
	out := make([]StreamStatus, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, *st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
