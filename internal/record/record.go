package record

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidFrequency = errors.New("sampling frequency must be a finite value >= 0")
	ErrInvalidKey       = errors.New("stream key must have four dot separated codes")
)

// StreamKey identifies one logical continuous-data channel.
type StreamKey struct {
	Network  string
	Station  string
	Location string
	Channel  string
}

// NewStreamKey builds a key from its four codes
func NewStreamKey(network, station, location, channel string) StreamKey {
	return StreamKey{Network: network, Station: station, Location: location, Channel: channel}
}

// ParseStreamKey parses the dotted NET.STA.LOC.CHA form. The location code
// may be empty ("GE.APE..BHZ").
func ParseStreamKey(s string) (StreamKey, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return StreamKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return NewStreamKey(parts[0], parts[1], parts[2], parts[3]), nil
}

// String returns the dotted stream ID
func (k StreamKey) String() string {
	return k.Network + "." + k.Station + "." + k.Location + "." + k.Channel
}

// MarshalText encodes the key as its dotted stream ID.
func (k StreamKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a dotted stream ID.
func (k *StreamKey) UnmarshalText(text []byte) error {
	parsed, err := ParseStreamKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Less orders keys lexicographically by network, station, location, channel.
func (k StreamKey) Less(o StreamKey) bool {
	if k.Network != o.Network {
		return k.Network < o.Network
	}
	if k.Station != o.Station {
		return k.Station < o.Station
	}
	if k.Location != o.Location {
		return k.Location < o.Location
	}
	return k.Channel < o.Channel
}

// Record is one timestamped, keyed chunk of sample data.
type Record struct {
	Key       StreamKey
	Start     time.Time
	Frequency float64
	Samples   []float64
}

// New validates the header and returns a record owning samples.
func New(key StreamKey, start time.Time, frequency float64, samples []float64) (*Record, error) {
	if math.IsNaN(frequency) || math.IsInf(frequency, 0) || frequency < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrequency, frequency)
	}
	return &Record{Key: key, Start: start, Frequency: frequency, Samples: samples}, nil
}

// End returns the time just after the last sample.
func (r *Record) End() time.Time {
	return r.Start.Add(r.Duration())
}

// Duration returns the time span covered by the samples.
func (r *Record) Duration() time.Duration {
	if r.Frequency <= 0 || len(r.Samples) == 0 {
		return 0
	}
	return SecondsToDuration(float64(len(r.Samples)) / r.Frequency)
}

// SampleTime returns the timestamp of sample i.
func (r *Record) SampleTime(i int) time.Time {
	if r.Frequency <= 0 {
		return r.Start
	}
	return r.Start.Add(SecondsToDuration(float64(i) / r.Frequency))
}

// WithSamples derives a record with the same header and new samples.
func (r *Record) WithSamples(samples []float64) *Record {
	return &Record{Key: r.Key, Start: r.Start, Frequency: r.Frequency, Samples: samples}
}

// WithHeader derives a record with a new start and frequency.
func (r *Record) WithHeader(start time.Time, frequency float64, samples []float64) *Record {
	return &Record{Key: r.Key, Start: start, Frequency: frequency, Samples: samples}
}

// SecondsToDuration converts floating point seconds, rounding to the
// nearest nanosecond.
func SecondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}
