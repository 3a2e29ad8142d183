package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Pipeline  PipelineConfig
	Source    SourceConfig
	QC        QCConfig
	Filter    FilterConfig
	Sinks     SinkConfig

	// ChecksFile optionally overlays QC and stream selection settings
	ChecksFile string `envconfig:"CHECKS_FILE"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// ExitOnDone stops the server once the source is exhausted and every
	// result is committed. Otherwise the status API stays up until shutdown.
	ExitOnDone bool `envconfig:"EXIT_ON_DONE" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// PipelineConfig sizes the worker pool and queues.
type PipelineConfig struct {
	Workers        int    `envconfig:"PIPELINE_WORKERS" default:"1"`
	RawCapacity    int    `envconfig:"RAW_QUEUE_CAPACITY" default:"1024"`
	ResultCapacity int    `envconfig:"RESULT_QUEUE_CAPACITY" default:"1024"`
	IncludeInvalid bool   `envconfig:"COMMIT_INVALID" default:"false"`
	Creator        string `envconfig:"CREATOR_ID" default:"qcflow"`
}

// SourceConfig selects the record files and the streams to process.
type SourceConfig struct {
	Pattern string    `envconfig:"SOURCE_PATTERN"`
	Rate    float64   `envconfig:"SOURCE_RATE" default:"0"`
	Burst   int       `envconfig:"SOURCE_BURST" default:"1"`
	Mask    string    `envconfig:"STREAM_MASK"`
	Allow   []string  `envconfig:"STREAM_ALLOW"`
	Begin   time.Time `envconfig:"SOURCE_BEGIN"`
	End     time.Time `envconfig:"SOURCE_END"`
}

// QCConfig selects the checks and their parameters.
type QCConfig struct {
	Checks          []string      `envconfig:"QC_CHECKS" default:"outage,spike"`
	OutageThreshold time.Duration `envconfig:"QC_OUTAGE_THRESHOLD" default:"30m"`
	SpikeHighPass   bool          `envconfig:"QC_SPIKE_HIGHPASS" default:"false"`
	SpikeCorner     float64       `envconfig:"QC_SPIKE_CORNER" default:"0.1"`
	GapTolerance    time.Duration `envconfig:"QC_GAP_TOLERANCE" default:"0s"`
}

// FilterConfig selects the per-stream filter applied before QC.
type FilterConfig struct {
	// Name is one of "", "highpass", "decimate" or "gain"
	Name string `envconfig:"FILTER"`
	// Factor is the corner frequency for highpass, the decimation factor
	// for decimate and the scale for gain
	Factor    float64 `envconfig:"FILTER_FACTOR" default:"1"`
	BlockSize int     `envconfig:"FILTER_BLOCK" default:"1"`
}

// SinkConfig enables result sinks. Empty values disable a sink.
type SinkConfig struct {
	ResultsFile string `envconfig:"RESULTS_FILE"`
	NATSURL     string `envconfig:"NATS_URL"`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"qc.results"`
	WebhookURL  string `envconfig:"WEBHOOK_URL"`
}

var filters = map[string]bool{"": true, "highpass": true, "decimate": true, "gain": true}

// Load loads configuration from environment variables, then overlays the
// checks file if one is configured.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.ChecksFile != "" {
		file, err := LoadFile(cfg.ChecksFile)
		if err != nil {
			return nil, err
		}
		if err := file.Apply(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Pipeline: PipelineConfig{
			Workers:        1,
			RawCapacity:    1024,
			ResultCapacity: 1024,
			Creator:        "qcflow",
		},
		Source: SourceConfig{
			Burst: 1,
		},
		QC: QCConfig{
			Checks:          []string{"outage", "spike"},
			OutageThreshold: 30 * time.Minute,
			SpikeCorner:     0.1,
		},
		Filter: FilterConfig{
			Factor:    1,
			BlockSize: 1,
		},
		Sinks: SinkConfig{
			NATSSubject: "qc.results",
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Pipeline.Workers < 1:
		return fmt.Errorf("PIPELINE_WORKERS must be positive, got %d", c.Pipeline.Workers)
	case c.Pipeline.RawCapacity < 1:
		return fmt.Errorf("RAW_QUEUE_CAPACITY must be positive, got %d", c.Pipeline.RawCapacity)
	case c.Pipeline.ResultCapacity < 1:
		return fmt.Errorf("RESULT_QUEUE_CAPACITY must be positive, got %d", c.Pipeline.ResultCapacity)
	case c.Source.Rate < 0:
		return fmt.Errorf("SOURCE_RATE must not be negative, got %v", c.Source.Rate)
	case c.QC.OutageThreshold < 0:
		return fmt.Errorf("QC_OUTAGE_THRESHOLD must not be negative, got %s", c.QC.OutageThreshold)
	case c.QC.GapTolerance < 0:
		return fmt.Errorf("QC_GAP_TOLERANCE must not be negative, got %s", c.QC.GapTolerance)
	case c.QC.SpikeHighPass && c.QC.SpikeCorner <= 0:
		return fmt.Errorf("QC_SPIKE_CORNER must be positive, got %v", c.QC.SpikeCorner)
	case len(c.QC.Checks) == 0:
		return fmt.Errorf("QC_CHECKS must name at least one check")
	case !filters[c.Filter.Name]:
		return fmt.Errorf("unknown FILTER %q", c.Filter.Name)
	case c.Filter.Name != "" && c.Filter.Factor <= 0:
		return fmt.Errorf("FILTER_FACTOR must be positive, got %v", c.Filter.Factor)
	case !c.Source.Begin.IsZero() && !c.Source.End.IsZero() && !c.Source.End.After(c.Source.Begin):
		return fmt.Errorf("SOURCE_END must be after SOURCE_BEGIN")
	}
	if c.Source.Mask != "" {
		if _, err := regexp.Compile(c.Source.Mask); err != nil {
			return fmt.Errorf("invalid STREAM_MASK: %w", err)
		}
	}
	return nil
}
