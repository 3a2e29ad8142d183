package ingest

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

// Selector decides which records enter the pipeline. A zero Selector
// accepts everything.
type Selector struct {
	mask  *regexp.Regexp
	allow []string
	begin time.Time
	end   time.Time
}

// SelectorConfig describes a selection.
type SelectorConfig struct {
	// Mask is a regular expression matched against the dotted stream ID.
	Mask string
	// Allow lists stream ID patterns (e.g. "GE.*.*.BH?"). Empty allows all.
	Allow []string
	// Begin and End bound the acquisition window [Begin, End). Zero values
	// leave that side open.
	Begin time.Time
	End   time.Time
}

// NewSelector compiles cfg.
func NewSelector(cfg SelectorConfig) (*Selector, error) {
	s := &Selector{begin: cfg.Begin, end: cfg.End}

	if cfg.Mask != "" {
		mask, err := regexp.Compile(cfg.Mask)
		if err != nil {
			return nil, fmt.Errorf("invalid stream mask: %w", err)
		}
		s.mask = mask
	}

	for _, pattern := range cfg.Allow {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid stream pattern %q", pattern)
		}
		s.allow = append(s.allow, pattern)
	}

	if !s.begin.IsZero() && !s.end.IsZero() && !s.end.After(s.begin) {
		return nil, fmt.Errorf("time window end %s must be after begin %s", s.end, s.begin)
	}
	return s, nil
}

// Match reports whether rec passes the mask, the allow-list and the window.
func (s *Selector) Match(rec *record.Record) bool {
	if s == nil {
		return true
	}
	return s.MatchKey(rec.Key) && s.inWindow(rec)
}

// MatchKey applies the mask and the allow-list only.
func (s *Selector) MatchKey(key record.StreamKey) bool {
	if s == nil {
		return true
	}
	id := key.String()
	if s.mask != nil && !s.mask.MatchString(id) {
		return false
	}
	if len(s.allow) == 0 {
		return true
	}
	for _, pattern := range s.allow {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return true
		}
	}
	return false
}

func (s *Selector) inWindow(rec *record.Record) bool {
	if !s.begin.IsZero() {
		// End is just past the last sample, so a record ending at begin has
		// nothing inside the window.
		if rec.Duration() > 0 && !rec.End().After(s.begin) {
			return false
		}
		if rec.Duration() == 0 && rec.Start.Before(s.begin) {
			return false
		}
	}
	if !s.end.IsZero() && !rec.Start.Before(s.end) {
		return false
	}
	return true
}
