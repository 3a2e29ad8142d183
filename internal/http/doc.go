// Package http serves the read-only status API of a running pipeline.
//
// Endpoints:
//   - Health: / and /health
//   - Streams: /streams
//   - QC: /qc/checks, /qc/latest?check=spike
//   - Pipeline: /queues
//   - Metrics: /metrics (Prometheus), /metrics/json
//
// Example Usage:
//
//	handlers := http.NewHandlers(store, runner, ingestor, checks, metrics, registry)
//	handlers.Register(router)
package http
