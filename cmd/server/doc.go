// Package main runs the qcflow QC service.
//
// Records are read from JSON-lines files, run through the per-stream filter
// and the configured QC checks, and the results are committed to the
// results file, the status API, the websocket stream and, when configured,
// NATS and a webhook.
//
//	record files → ingest → raw queues → workers → result queue → sinks
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML or TOML checks file
//   - CLI flags (override both)
//
// Usage:
//
//	# Process an archive once and exit
//	./server -source 'archive/**/*.jsonl.gz' -checks outage,spike -results - -once
//
//	# Follow a directory and serve status on :8000 (colored logs, debug level)
//	./server -source 'incoming/*.jsonl' -dev
//
// Signals:
//   - SIGINT, SIGTERM: stop ingest, drain queued records, then exit
package main
