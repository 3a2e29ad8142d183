// Package record defines the unit of continuous data moved through the
// pipeline.
//
// A Record is a contiguous span of samples for one stream. Streams are
// identified by a StreamKey, the ordered tuple of network, station, location
// and channel codes. Records are treated as immutable once constructed: every
// stage that needs different samples derives a new record with WithSamples
// instead of mutating the one it was handed.
//
// Time Model:
//
//	start ─────── n samples at f Hz ───────▶ end = start + n/f
//
// A record with an unknown sampling frequency (0) or no samples has
// end == start.
package record
