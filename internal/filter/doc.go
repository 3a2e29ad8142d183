// Package filter provides per-stream record filters and the demultiplexer
// that applies one filter algorithm independently to every stream.
//
// A Filter consumes records of a single stream and may emit a derived record
// for each input, or hold data back until Flush. Filters are never shared
// between streams: the Demultiplexer keeps one instance per StreamKey,
// derived from a template.
//
// Template Rule:
//
//	first key seen   → the template instance itself (no clone)
//	every other key  → template.Clone()
//
// The first stream therefore costs nothing extra, while every further stream
// gets fully isolated state.
//
// Draining:
//
//	for rec := demux.Flush(); rec != nil; rec = demux.Flush() {
//		emit(rec)
//	}
//
// Filters:
//   - Chain: composes filters left to right
//   - HighPass: first-order recursive high-pass
//   - Decimate: keeps every N-th sample and emits fixed-size blocks
//   - Gain: scales samples
package filter
