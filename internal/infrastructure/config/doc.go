// Package config provides 12-factor configuration management for qcflow.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables. QC and stream selection
// settings may also come from a YAML or TOML checks file named by
// CHECKS_FILE, which takes precedence over the environment.
//
// Configuration Sections:
//   - Server: HTTP inspection server (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting of the HTTP surface
//   - Pipeline: worker count, queue capacities, creator ID
//   - Source: record file pattern, replay rate, stream mask and time window
//   - QC: checks and their parameters
//   - Filter: per-stream filter applied before QC
//   - Sinks: results file, NATS and webhook
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - PIPELINE_WORKERS, RAW_QUEUE_CAPACITY, RESULT_QUEUE_CAPACITY, COMMIT_INVALID, CREATOR_ID
//   - SOURCE_PATTERN, SOURCE_RATE, SOURCE_BURST, STREAM_MASK, STREAM_ALLOW, SOURCE_BEGIN, SOURCE_END
//   - QC_CHECKS, QC_OUTAGE_THRESHOLD, QC_SPIKE_HIGHPASS, QC_SPIKE_CORNER, QC_GAP_TOLERANCE
//   - FILTER, FILTER_FACTOR, FILTER_BLOCK
//   - RESULTS_FILE, NATS_URL, NATS_SUBJECT, WEBHOOK_URL, CHECKS_FILE
package config
