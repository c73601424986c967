package domain

import (
	"fmt"
	"strings"
)

type SeriesID string

// MeetingSeries is a named recurring meeting configuration. It is immutable
// for the lifetime of a generation run.
type MeetingSeries struct {
	ID              SeriesID
	Name            string
	Rule            RecurrenceRule
	StartTime       TimeOfDay
	DurationMinutes int
}

func (s MeetingSeries) Validate() error {
	if strings.TrimSpace(string(s.ID)) == "" {
		return fmt.Errorf("%w: empty series id", ErrInvalidSeriesConfiguration)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: series %s: empty name", ErrInvalidSeriesConfiguration, s.ID)
	}
	if err := s.Rule.Validate(); err != nil {
		return fmt.Errorf("series %s: %w", s.ID, err)
	}
	if s.StartTime.Hour < 0 || s.StartTime.Hour > 23 || s.StartTime.Minute < 0 || s.StartTime.Minute > 59 {
		return fmt.Errorf("%w: series %s: invalid start time %s", ErrInvalidSeriesConfiguration, s.ID, s.StartTime)
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("%w: series %s: duration must be positive", ErrInvalidSeriesConfiguration, s.ID)
	}
	return nil
}

// InvalidSeries is a configured series that could not be built.
type InvalidSeries struct {
	ID  SeriesID
	Err error
}

func (e InvalidSeries) Error() string { return e.Err.Error() }

func (e InvalidSeries) Unwrap() error { return e.Err }

// InvalidSeriesErrors is returned alongside the series that did load, so a
// bad entry only takes itself out of a run.
type InvalidSeriesErrors []InvalidSeries

func (e InvalidSeriesErrors) Error() string {
	msgs := make([]string, len(e))
	for i, inv := range e {
		msgs[i] = inv.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e InvalidSeriesErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, inv := range e {
		errs[i] = inv
	}
	return errs
}
