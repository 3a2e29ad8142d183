package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// File is the checks file. Durations are Go duration strings ("30m").
//
//	checks: [outage, spike, gap]
//	creator: station-qc
//	outage_threshold: 30m
//	spike:
//	  highpass: true
//	  corner: 0.5
//	streams:
//	  mask: '^GE\.'
//	  allow: ["GE.*.*.BH?"]
type File struct {
	Checks          []string     `yaml:"checks" toml:"checks"`
	Creator         string       `yaml:"creator" toml:"creator"`
	OutageThreshold string       `yaml:"outage_threshold" toml:"outage_threshold"`
	GapTolerance    string       `yaml:"gap_tolerance" toml:"gap_tolerance"`
	Spike           *SpikeFile   `yaml:"spike" toml:"spike"`
	Streams         *StreamsFile `yaml:"streams" toml:"streams"`
}

type SpikeFile struct {
	HighPass bool    `yaml:"highpass" toml:"highpass"`
	Corner   float64 `yaml:"corner" toml:"corner"`
}

type StreamsFile struct {
	Mask  string   `yaml:"mask" toml:"mask"`
	Allow []string `yaml:"allow" toml:"allow"`
	Begin string   `yaml:"begin" toml:"begin"`
	End   string   `yaml:"end" toml:"end"`
}

// LoadFile reads a YAML (.yaml, .yml) or TOML (.toml) checks file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checks file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("checks file %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse checks file %s: %w", path, err)
	}
	return &f, nil
}

// Apply overlays the settings present in f onto cfg.
func (f *File) Apply(cfg *Config) error {
	if len(f.Checks) > 0 {
		cfg.QC.Checks = f.Checks
	}
	if f.Creator != "" {
		cfg.Pipeline.Creator = f.Creator
	}
	if f.OutageThreshold != "" {
		d, err := time.ParseDuration(f.OutageThreshold)
		if err != nil {
			return fmt.Errorf("outage_threshold: %w", err)
		}
		cfg.QC.OutageThreshold = d
	}
	if f.GapTolerance != "" {
		d, err := time.ParseDuration(f.GapTolerance)
		if err != nil {
			return fmt.Errorf("gap_tolerance: %w", err)
		}
		cfg.QC.GapTolerance = d
	}
	if f.Spike != nil {
		cfg.QC.SpikeHighPass = f.Spike.HighPass
		if f.Spike.Corner != 0 {
			cfg.QC.SpikeCorner = f.Spike.Corner
		}
	}
	if s := f.Streams; s != nil {
		if s.Mask != "" {
			cfg.Source.Mask = s.Mask
		}
		if len(s.Allow) > 0 {
			cfg.Source.Allow = s.Allow
		}
		if s.Begin != "" {
			t, err := time.Parse(time.RFC3339, s.Begin)
			if err != nil {
				return fmt.Errorf("streams.begin: %w", err)
			}
			cfg.Source.Begin = t
		}
		if s.End != "" {
			t, err := time.Parse(time.RFC3339, s.End)
			if err != nil {
				return fmt.Errorf("streams.end: %w", err)
			}
			cfg.Source.End = t
		}
	}
	return nil
}
