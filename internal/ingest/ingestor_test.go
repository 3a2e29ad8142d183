package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

var (
	t0   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bhz  = record.NewStreamKey("GE", "APE", "", "BHZ")
	bhn  = record.NewStreamKey("GE", "APE", "", "BHN")
	lhz  = record.NewStreamKey("II", "KDAK", "00", "LHZ")
	errQ = errors.New("socket reset")
)

func rec(key record.StreamKey, offset time.Duration, n int) *record.Record {
	return &record.Record{Key: key, Start: t0.Add(offset), Frequency: 1, Samples: make([]float64, n)}
}

func drain(t *testing.T, in *Ingestor) []*record.Record {
	t.Helper()
	var out []*record.Record
	for r := range in.All(context.Background()) {
		out = append(out, r)
	}
	return out
}

func TestIngestorSkipsTransientErrors(t *testing.T) {
	r1, r2 := rec(bhz, 0, 10), rec(bhz, 10*time.Second, 10)
	src := NewScriptedSource(
		Item{Record: r1},
		Item{Err: Transientf("bad sample block")},
		Item{Err: Transientf("checksum mismatch")},
		Item{Record: r2},
	)
	in := New(src)

	got := drain(t, in)
	assert.Equal(t, []*record.Record{r1, r2}, got)
	assert.True(t, in.Done())
	assert.NoError(t, in.Err())

	stats := in.Stats()
	assert.Equal(t, uint64(2), stats.Records)
	assert.Equal(t, uint64(2), stats.Transient)
	assert.True(t, stats.Done)
}

func TestIngestorStopsOnFatalError(t *testing.T) {
	src := NewScriptedSource(
		Item{Record: rec(bhz, 0, 1)},
		Item{Err: errQ},
		Item{Record: rec(bhz, time.Second, 1)},
	)
	in := New(src)

	got := drain(t, in)
	assert.Len(t, got, 1)
	assert.ErrorIs(t, in.Err(), errQ)

	_, ok := in.Next(context.Background())
	assert.False(t, ok, "the record after the fatal error is never read")
}

func TestIngestorIsNotRestartable(t *testing.T) {
	src := NewMemorySource(rec(bhz, 0, 1), rec(bhz, time.Second, 1))
	in := New(src)

	assert.Len(t, drain(t, in), 2)
	assert.Empty(t, drain(t, in))

	_, err := src.ReadNext(context.Background())
	assert.Error(t, err, "the source is closed once the ingestor is done")
}

func TestIngestorNilRecordIsTransient(t *testing.T) {
	r := rec(bhz, 0, 1)
	in := New(NewScriptedSource(Item{}, Item{Record: r}))

	assert.Equal(t, []*record.Record{r}, drain(t, in))
	assert.Equal(t, uint64(1), in.Stats().Transient)
}

func TestIngestorSelector(t *testing.T) {
	sel, err := NewSelector(SelectorConfig{Mask: `^GE\.`})
	require.NoError(t, err)

	src := NewMemorySource(rec(bhz, 0, 1), rec(lhz, 0, 1), rec(bhn, 0, 1))
	in := New(src, WithSelector(sel))

	got := drain(t, in)
	require.Len(t, got, 2)
	assert.Equal(t, bhz, got[0].Key)
	assert.Equal(t, bhn, got[1].Key)
	assert.Equal(t, uint64(1), in.Stats().Skipped)
}

func TestIngestorEarlyBreakKeepsPosition(t *testing.T) {
	records := []*record.Record{rec(bhz, 0, 1), rec(bhz, time.Second, 1), rec(bhz, 2*time.Second, 1)}
	in := New(NewMemorySource(records...))

	for r := range in.All(context.Background()) {
		assert.Same(t, records[0], r)
		break
	}
	assert.False(t, in.Done())

	got := drain(t, in)
	assert.Equal(t, records[1:], got)
}

func TestIngestorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := New(NewMemorySource(rec(bhz, 0, 1)))
	_, ok := in.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, in.Err(), context.Canceled)
	assert.True(t, in.Done())
}

func TestIngestorRateLimit(t *testing.T) {
	records := make([]*record.Record, 5)
	for i := range records {
		records[i] = rec(bhz, time.Duration(i)*time.Second, 1)
	}
	in := New(NewMemorySource(records...), WithRate(100, 1))

	start := time.Now()
	assert.Len(t, drain(t, in), 5)
	// four waits of 10ms after the initial burst token
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestIngestorRateLimitCancelled(t *testing.T) {
	in := New(NewMemorySource(rec(bhz, 0, 1), rec(bhz, time.Second, 1)), WithRate(0.001, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := in.Next(ctx)
	require.True(t, ok, "the burst token admits the first record")
	_, ok = in.Next(ctx)
	assert.False(t, ok)
	assert.Error(t, in.Err())
}
