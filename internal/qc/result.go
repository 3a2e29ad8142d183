package qc

import (
	"time"

	"github.com/GriffinCanCode/qcflow/internal/record"
	"github.com/GriffinCanCode/qcflow/internal/shared/id"
)

// Result is the outcome of one Process call. It is not modified after the
// observers have been notified.
type Result struct {
	ID        id.ResultID      `json:"id"`
	Check     string           `json:"check"`
	Key       record.StreamKey `json:"stream"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Frequency float64          `json:"frequency"`
	Value     Value            `json:"value"`
	Valid     bool             `json:"valid"`
	Creator   string           `json:"creator,omitempty"`
	Created   time.Time        `json:"created"`
}
