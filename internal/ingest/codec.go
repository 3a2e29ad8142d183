package ingest

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

// Line is the JSON-lines form of a record:
//
//	{"stream":"GE.APE..BHZ","start":"2024-03-01T00:00:00Z","frequency":100,"samples":[1,2,3]}
type Line struct {
	Stream    record.StreamKey `json:"stream"`
	Start     time.Time        `json:"start"`
	Frequency float64          `json:"frequency"`
	Samples   []float64        `json:"samples,omitempty"`
}

// DecodeLine parses one JSON line into a validated record.
func DecodeLine(data []byte) (*record.Record, error) {
	var l Line
	if err := sonic.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if l.Stream == (record.StreamKey{}) {
		return nil, fmt.Errorf("decode record: %w", record.ErrInvalidKey)
	}
	if l.Start.IsZero() {
		return nil, fmt.Errorf("decode record %s: missing start time", l.Stream)
	}
	return record.New(l.Stream, l.Start, l.Frequency, l.Samples)
}

// EncodeLine renders rec as one JSON line without the trailing newline.
func EncodeLine(rec *record.Record) ([]byte, error) {
	return sonic.Marshal(Line{
		Stream:    rec.Key,
		Start:     rec.Start,
		Frequency: rec.Frequency,
		Samples:   rec.Samples,
	})
}
