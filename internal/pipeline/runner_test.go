package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/qcflow/internal/filter"
	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/qcflow/internal/ingest"
	"github.com/GriffinCanCode/qcflow/internal/qc"
	"github.com/GriffinCanCode/qcflow/internal/record"
)

var (
	t0  = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bhz = record.NewStreamKey("GE", "APE", "", "BHZ")
	bhn = record.NewStreamKey("GE", "APE", "", "BHN")
)

// collectSink records every committed result
type collectSink struct {
	mu      sync.Mutex
	results []*qc.Result
	failAt  int
	closed  bool
}

func (s *collectSink) Write(_ context.Context, res *qc.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.results)+1 >= s.failAt {
		return errors.New("disk full")
	}
	s.results = append(s.results, res)
	return nil
}

func (s *collectSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *collectSink) byKey() map[record.StreamKey][]*qc.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[record.StreamKey][]*qc.Result)
	for _, r := range s.results {
		out[r.Key] = append(out[r.Key], r)
	}
	return out
}

// chanSource blocks until a record is sent or ctx is cancelled
type chanSource struct {
	ch chan *record.Record
}

func (s *chanSource) ReadNext(ctx context.Context) (*record.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rec, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return rec, nil
	}
}

func contiguous(key record.StreamKey, n, samples int) []*record.Record {
	out := make([]*record.Record, n)
	for i := range out {
		data := make([]float64, samples)
		for j := range data {
			data[j] = float64(i)
		}
		out[i] = &record.Record{Key: key, Start: t0.Add(time.Duration(i*samples) * time.Second), Frequency: 1, Samples: data}
	}
	return out
}

func stage(t *testing.T, checks ...string) *qc.Stage {
	t.Helper()
	params := qc.DefaultParams()
	params.OutageThreshold = 30 * time.Second
	s, err := qc.DefaultRegistry().BuildStage(checks, params)
	require.NoError(t, err)
	return s
}

func TestRunOutageEndToEnd(t *testing.T) {
	records := contiguous(bhz, 3, 10)
	// one minute hole before the fourth BHZ record
	records = append(records, &record.Record{Key: bhz, Start: t0.Add(90 * time.Second), Frequency: 1, Samples: make([]float64, 10)})
	records = append(records, contiguous(bhn, 4, 10)...)

	out := &collectSink{}
	r, err := New(DefaultConfig(), Deps{
		Ingestor: ingest.New(ingest.NewMemorySource(records...)),
		Stage:    stage(t, "outage"),
		Sink:     out,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, out.results, 1)
	res := out.results[0]
	assert.Equal(t, bhz, res.Key)
	assert.Equal(t, "outage", res.Check)
	assert.InDelta(t, 60, res.Value.Scalar, 1e-9)
	assert.True(t, out.closed)
	assert.Zero(t, r.Dropped())
}

func TestRunPreservesPerKeyOrderAcrossWorkers(t *testing.T) {
	keys := make([]record.StreamKey, 12)
	var records []*record.Record
	perKey := 25
	for k := range keys {
		keys[k] = record.NewStreamKey("XX", fmt.Sprintf("S%02d", k), "00", "HHZ")
	}
	// interleave keys so every worker sees several streams
	for i := range perKey {
		for _, key := range keys {
			records = append(records, contiguous(key, perKey, 5)[i])
		}
	}

	out := &collectSink{}
	cfg := Config{Workers: 4, RawCapacity: 3, ResultCapacity: 2, IncludeInvalid: true}
	r, err := New(cfg, Deps{
		Ingestor: ingest.New(ingest.NewMemorySource(records...)),
		Stage:    stage(t, "offset"),
		Sink:     out,
		Metrics:  monitoring.NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	byKey := out.byKey()
	require.Len(t, byKey, len(keys))
	for _, key := range keys {
		results := byKey[key]
		require.Len(t, results, perKey, key.String())
		for i, res := range results {
			// offset of record i is i, and results arrive in feed order
			assert.InDelta(t, float64(i), res.Value.Scalar, 1e-12, key.String())
		}
	}
	for name, depth := range r.QueueDepths() {
		assert.Zero(t, depth, name)
	}
}

func TestRunFlushesFiltersOnShutdown(t *testing.T) {
	// the first record fills a 4-sample block; the second stays buffered in
	// the decimator until the worker flushes at shutdown
	records := []*record.Record{
		{Key: bhz, Start: t0, Frequency: 1, Samples: []float64{1, 1, 1, 1, 1}},
		{Key: bhz, Start: t0.Add(5 * time.Second), Frequency: 1, Samples: []float64{3, 3}},
	}

	out := &collectSink{}
	r, err := New(DefaultConfig(), Deps{
		Ingestor: ingest.New(ingest.NewMemorySource(records...)),
		Filter:   filter.NewDecimate(1, 4),
		Stage:    stage(t, "offset"),
		Sink:     out,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, out.results, 2)
	assert.InDelta(t, 1, out.results[0].Value.Scalar, 1e-12)
	assert.Equal(t, t0, out.results[0].Start)
	assert.InDelta(t, 3, out.results[1].Value.Scalar, 1e-12)
	assert.Equal(t, t0.Add(5*time.Second), out.results[1].Start)
}

func TestRunSinkFailureStops(t *testing.T) {
	records := contiguous(bhz, 200, 1)
	out := &collectSink{failAt: 3}
	r, err := New(Config{Workers: 2, RawCapacity: 2, ResultCapacity: 1, IncludeInvalid: true}, Deps{
		Ingestor: ingest.New(ingest.NewMemorySource(records...)),
		Stage:    stage(t, "offset"),
		Sink:     out,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "disk full")
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop after a sink failure")
	}
	assert.Len(t, out.results, 2)
	assert.True(t, out.closed)
}

func TestRunReturnsFatalSourceErrorAfterDrain(t *testing.T) {
	good := contiguous(bhz, 3, 1)
	src := ingest.NewScriptedSource(
		ingest.Item{Record: good[0]},
		ingest.Item{Record: good[1]},
		ingest.Item{Err: errors.New("connection reset")},
		ingest.Item{Record: good[2]},
	)

	out := &collectSink{}
	r, err := New(Config{Workers: 1, RawCapacity: 1, ResultCapacity: 1, IncludeInvalid: true}, Deps{
		Ingestor: ingest.New(src),
		Stage:    stage(t, "rms"),
		Sink:     out,
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	assert.Len(t, out.results, 2, "records read before the failure are committed")
}

func TestRunCancelDrainsQueuedWork(t *testing.T) {
	src := &chanSource{ch: make(chan *record.Record)}
	out := &collectSink{}
	r, err := New(Config{Workers: 2, RawCapacity: 8, ResultCapacity: 8, IncludeInvalid: true}, Deps{
		Ingestor: ingest.New(src),
		Stage:    stage(t, "offset"),
		Sink:     out,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for _, rec := range contiguous(bhz, 5, 2) {
		src.ch <- rec
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop on cancel")
	}
	assert.Len(t, out.results, 5)
	assert.True(t, out.closed)
}

func TestRunOnlyOnce(t *testing.T) {
	r, err := New(DefaultConfig(), Deps{
		Ingestor: ingest.New(ingest.NewMemorySource()),
		Stage:    stage(t, "gap"),
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))
	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyRun)
	assert.NotEmpty(t, r.RunID())
}

func TestNewValidates(t *testing.T) {
	deps := Deps{Ingestor: ingest.New(ingest.NewMemorySource()), Stage: qc.NewStage()}

	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{"no workers", Config{Workers: 0, RawCapacity: 1, ResultCapacity: 1}, deps},
		{"no raw capacity", Config{Workers: 1, RawCapacity: 0, ResultCapacity: 1}, deps},
		{"no result capacity", Config{Workers: 1, RawCapacity: 1, ResultCapacity: 0}, deps},
		{"no ingestor", DefaultConfig(), Deps{Stage: qc.NewStage()}},
		{"no stage", DefaultConfig(), Deps{Ingestor: deps.Ingestor}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.deps)
			assert.Error(t, err)
		})
	}
}

func TestShardFor(t *testing.T) {
	assert.Equal(t, 0, shardFor(bhz, 1))
	for n := 2; n < 9; n++ {
		s := shardFor(bhz, n)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, n)
		assert.Equal(t, s, shardFor(bhz, n), "stable for a key")
	}
}
