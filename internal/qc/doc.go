// Package qc implements the quality-control computations run on every
// record of every stream.
//
// A Pipeline wraps one Computation (a named check such as "outage" or
// "spike") and turns each processed record into a Result, then notifies its
// subscribed observers synchronously. Every Process call ends in exactly one
// of three states:
//
//	unset    no usable data (no samples, unknown sampling frequency)
//	invalid  computed, nothing to report (e.g. no outage)
//	valid    computed, Result.Value holds the diagnostic
//
// Unset is not an error. Observers must check IsSet and IsValid before
// reading Result.
//
// A Stage bundles the pipelines configured for one stream and satisfies
// filter.Filter, so a filter.Demultiplexer can give every stream its own
// independent set of checks.
//
// Checks:
//   - outage: gap since the most recent data exceeds a threshold
//   - spike: sharp single-sample reversals beyond 5×RMS
//   - gap, overlap: record continuity
//   - latency: wall clock minus record end
//   - offset, rms: sample statistics
package qc
