package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name string
		cfg  SelectorConfig
		want map[string]bool // stream ID -> selected
	}{
		{
			name: "zero selector accepts all",
			want: map[string]bool{"GE.APE..BHZ": true, "II.KDAK.00.LHZ": true},
		},
		{
			name: "mask",
			cfg:  SelectorConfig{Mask: `^GE\..*\.BHZ$`},
			want: map[string]bool{"GE.APE..BHZ": true, "GE.APE..BHN": false, "II.KDAK.00.LHZ": false},
		},
		{
			name: "allow patterns",
			cfg:  SelectorConfig{Allow: []string{"II.*.00.*", "GE.APE..BH?"}},
			want: map[string]bool{"GE.APE..BHZ": true, "GE.APE..BHN": true, "GE.APE..HHZ": false, "II.KDAK.00.LHZ": true},
		},
		{
			name: "mask and allow both apply",
			cfg:  SelectorConfig{Mask: `Z$`, Allow: []string{"GE.*"}},
			want: map[string]bool{"GE.APE..BHZ": true, "GE.APE..BHN": false, "II.KDAK.00.LHZ": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := NewSelector(tt.cfg)
			require.NoError(t, err)
			for id, want := range tt.want {
				key, err := parseKey(id)
				require.NoError(t, err)
				assert.Equal(t, want, sel.Match(rec(key, 0, 1)), id)
			}
		})
	}
}

func TestSelectorWindow(t *testing.T) {
	sel, err := NewSelector(SelectorConfig{Begin: t0.Add(time.Minute), End: t0.Add(2 * time.Minute)})
	require.NoError(t, err)

	assert.False(t, sel.Match(rec(bhz, 0, 10)), "ends before the window")
	assert.False(t, sel.Match(rec(bhz, 50*time.Second, 10)), "last sample just before begin")
	assert.True(t, sel.Match(rec(bhz, 51*time.Second, 10)), "last sample at begin")
	assert.True(t, sel.Match(rec(bhz, time.Minute, 0)), "empty record at begin")
	assert.False(t, sel.Match(rec(bhz, 59*time.Second, 0)), "empty record before begin")
	assert.True(t, sel.Match(rec(bhz, 55*time.Second, 10)), "overlaps the window start")
	assert.True(t, sel.Match(rec(bhz, 90*time.Second, 10)))
	assert.False(t, sel.Match(rec(bhz, 2*time.Minute, 10)), "end is exclusive")
}

func TestSelectorInvalid(t *testing.T) {
	_, err := NewSelector(SelectorConfig{Mask: "("})
	assert.Error(t, err)

	_, err = NewSelector(SelectorConfig{Allow: []string{"GE.[.*"}})
	assert.Error(t, err)

	_, err = NewSelector(SelectorConfig{Begin: t0, End: t0})
	assert.Error(t, err)
}

func TestNilSelectorMatches(t *testing.T) {
	var sel *Selector
	assert.True(t, sel.Match(rec(bhz, 0, 1)))
}
