// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Logs are written to stderr by default so that a results file written to
// stdout stays machine readable.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	defer logger.Flush()
//	ingestLog := logger.Component("ingest")
//	ingestLog.Info("source opened", zap.Int("files", 3))
package logging
