// Package server is the composition root: it builds the ingestor, the QC
// stage, the sinks and the pipeline runner from configuration, and serves
// the status API and the live result stream next to the running pipeline.
//
// Routes:
//   - /, /health, /streams, /queues
//   - /qc/checks, /qc/latest
//   - /metrics, /metrics/json
//   - /stream (websocket)
package server
