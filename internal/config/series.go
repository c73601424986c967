package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/recurrence"
)

const (
	defaultStartTime       = "19:00"
	defaultDurationMinutes = 60
)

// SeriesConfig is one series entry in the series file.
type SeriesConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Rule            string `yaml:"rule"`
	Time            string `yaml:"time,omitempty"`
	DurationMinutes int    `yaml:"duration_minutes,omitempty"`
}

// SeriesOverride replaces individual fields of a series by ID.
// Disabled drops the series entirely.
type SeriesOverride struct {
	Name            string `yaml:"name,omitempty"`
	Rule            string `yaml:"rule,omitempty"`
	Time            string `yaml:"time,omitempty"`
	DurationMinutes int    `yaml:"duration_minutes,omitempty"`
	Disabled        bool   `yaml:"disabled,omitempty"`
}

// SeriesFile is the on-disk layout:
//
//	series:
//	  - id: topic
//	    name: Monthly Topic
//	    rule: first monday
//	    time: "19:00"
//	overrides:
//	  custom:
//	    rule: sunday after first thursday
//
// An empty or missing series list keeps the built-in defaults.
type SeriesFile struct {
	Series    []SeriesConfig            `yaml:"series"`
	Overrides map[string]SeriesOverride `yaml:"overrides"`
}

// DefaultSeries returns the built-in monthly series. The custom series
// takes its rule and time from CUSTOM_SERIES_RULE and CUSTOM_SERIES_TIME.
func DefaultSeries(cfg Config) []SeriesConfig {
	customRule := cfg.CustomSeriesRule
	if customRule == "" {
		customRule = "fourth monday"
	}
	customTime := cfg.CustomSeriesTime
	if customTime == "" {
		customTime = defaultStartTime
	}
	return []SeriesConfig{
		{ID: "topic", Name: "Monthly Topic with Rhonda", Rule: "first monday"},
		{ID: "getitdone", Name: "Get-it-Done! Session", Rule: "second monday"},
		{ID: "qa", Name: "Q&A: Ask Us Anything", Rule: "third monday"},
		{ID: "reflection", Name: "Monthly Reflection", Rule: "fourth monday"},
		{ID: "custom", Name: "Custom Meeting", Rule: customRule, Time: customTime},
	}
}

// ParseSeriesFile decodes a series file. Unknown keys are rejected.
func ParseSeriesFile(data []byte) (SeriesFile, error) {
	var f SeriesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return SeriesFile{}, fmt.Errorf("decode series file: %w", err)
	}
	return f, nil
}

// BuildSeries merges the file over the defaults and converts every entry
// into a validated domain series. Entries that fail to convert are left out
// and reported as domain.InvalidSeriesErrors next to the series that did
// build. Duplicate IDs and overrides for unknown series fail the whole set.
func BuildSeries(cfg Config, file SeriesFile) ([]domain.MeetingSeries, error) {
	entries := file.Series
	if len(entries) == 0 {
		entries = DefaultSeries(cfg)
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: duplicate series id %q", domain.ErrInvalidSeriesConfiguration, e.ID)
		}
		seen[e.ID] = true
	}
	for id := range file.Overrides {
		if !seen[id] {
			return nil, fmt.Errorf("%w: override for unknown series %q", domain.ErrInvalidSeriesConfiguration, id)
		}
	}

	var invalid domain.InvalidSeriesErrors
	out := make([]domain.MeetingSeries, 0, len(entries))
	for _, e := range entries {
		if o, ok := file.Overrides[e.ID]; ok {
			if o.Disabled {
				continue
			}
			e = o.apply(e)
		}
		s, err := e.toDomain()
		if err != nil {
			invalid = append(invalid, domain.InvalidSeries{ID: domain.SeriesID(e.ID), Err: err})
			continue
		}
		out = append(out, s)
	}
	if len(invalid) > 0 {
		return out, invalid
	}
	return out, nil
}

func (o SeriesOverride) apply(e SeriesConfig) SeriesConfig {
	if o.Name != "" {
		e.Name = o.Name
	}
	if o.Rule != "" {
		e.Rule = o.Rule
	}
	if o.Time != "" {
		e.Time = o.Time
	}
	if o.DurationMinutes != 0 {
		e.DurationMinutes = o.DurationMinutes
	}
	return e
}

func (e SeriesConfig) toDomain() (domain.MeetingSeries, error) {
	rule, err := recurrence.ParseRule(e.Rule)
	if err != nil {
		return domain.MeetingSeries{}, fmt.Errorf("series %q: %w", e.ID, err)
	}

	timeStr := e.Time
	if timeStr == "" {
		timeStr = defaultStartTime
	}
	start, err := domain.ParseTimeOfDay(timeStr)
	if err != nil {
		return domain.MeetingSeries{}, fmt.Errorf("%w: series %q: %v", domain.ErrInvalidSeriesConfiguration, e.ID, err)
	}

	duration := e.DurationMinutes
	if duration == 0 {
		duration = defaultDurationMinutes
	}

	s := domain.MeetingSeries{
		ID:              domain.SeriesID(e.ID),
		Name:            e.Name,
		Rule:            rule,
		StartTime:       start,
		DurationMinutes: duration,
	}
	if err := s.Validate(); err != nil {
		return domain.MeetingSeries{}, err
	}
	return s, nil
}

// SeriesSource reads the series file on every call so edits apply to the
// next run without a restart. Without a file it serves the defaults.
// Series follows BuildSeries: bad entries come back as
// domain.InvalidSeriesErrors together with the usable series.
type SeriesSource struct {
	cfg      Config
	path     string
	readFile func(string) ([]byte, error)
}

func NewSeriesSource(cfg Config) *SeriesSource {
	return &SeriesSource{cfg: cfg, path: cfg.SeriesFile, readFile: os.ReadFile}
}

func (s *SeriesSource) Series(ctx context.Context) ([]domain.MeetingSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return BuildSeries(s.cfg, SeriesFile{})
	}
	data, err := s.readFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read series file: %w", err)
	}
	file, err := ParseSeriesFile(data)
	if err != nil {
		return nil, err
	}
	return BuildSeries(s.cfg, file)
}
