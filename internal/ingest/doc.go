// Package ingest linearizes records out of a possibly faulty source.
//
// A Source reports one of three outcomes per read: a record, io.EOF at the end
// of the stream, or an error. Errors wrapping ErrTransient cover a single
// malformed record and are skipped; any other error ends iteration. The
// Ingestor wraps a Source with stream selection, pacing and counters and
// exposes it as a forward-only sequence that cannot be restarted.
package ingest
