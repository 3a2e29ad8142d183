package qc

import (
	"fmt"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindScalar
	KindGap
	KindAnomalies
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindGap:
		return "gap"
	case KindAnomalies:
		return "anomalies"
	default:
		return "none"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*k = KindNone
	case "scalar":
		*k = KindScalar
	case "gap":
		*k = KindGap
	case "anomalies":
		*k = KindAnomalies
	default:
		return fmt.Errorf("unknown value kind %q", text)
	}
	return nil
}

// Anomaly is one flagged sample.
type Anomaly struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Value is the computed diagnostic: a scalar, a gap duration in seconds, or
// a time-ordered list of anomalies.
type Value struct {
	Kind      Kind      `json:"kind"`
	Scalar    float64   `json:"scalar,omitempty"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

func ScalarValue(v float64) Value {
	return Value{Kind: KindScalar, Scalar: v}
}

func GapValue(seconds float64) Value {
	return Value{Kind: KindGap, Scalar: seconds}
}

// AnomalyValue wraps anomalies, which must already be ordered by time.
func AnomalyValue(anomalies []Anomaly) Value {
	return Value{Kind: KindAnomalies, Anomalies: anomalies}
}

// Float returns the scalar or gap value.
func (v Value) Float() (float64, bool) {
	if v.Kind == KindScalar || v.Kind == KindGap {
		return v.Scalar, true
	}
	return 0, false
}

// Map returns the anomalies keyed by timestamp.
func (v Value) Map() map[time.Time]float64 {
	m := make(map[time.Time]float64, len(v.Anomalies))
	for _, a := range v.Anomalies {
		m[a.Time] = a.Value
	}
	return m
}
