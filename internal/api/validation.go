package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/generator"
)

const defaultDurationMinutes = 60

// Holiday listings are bounded to keep the year query sane.
const (
	minHolidayYear = 1971
	maxHolidayYear = 2199
)

func parseCreateOccurrence(req CreateOccurrenceRequest) (generator.SingleRequest, error) {
	if req.Title == "" {
		return generator.SingleRequest{}, fmt.Errorf("title is required")
	}
	if req.Date == "" {
		return generator.SingleRequest{}, fmt.Errorf("date is required")
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return generator.SingleRequest{}, fmt.Errorf("invalid date: %w", err)
	}
	if req.StartTime == "" {
		return generator.SingleRequest{}, fmt.Errorf("start_time is required")
	}
	start, err := domain.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return generator.SingleRequest{}, fmt.Errorf("invalid start_time: %w", err)
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = defaultDurationMinutes
	}
	if duration < 0 {
		return generator.SingleRequest{}, fmt.Errorf("duration_minutes must be positive")
	}

	return generator.SingleRequest{
		SeriesID:        domain.SeriesID(req.SeriesID),
		Title:           req.Title,
		Date:            date,
		StartTime:       start,
		DurationMinutes: duration,
	}, nil
}

// parseReschedule falls back to current when no start_time is given.
func parseReschedule(req RescheduleRequest, current domain.TimeOfDay) (time.Time, domain.TimeOfDay, error) {
	if req.Date == "" {
		return time.Time{}, domain.TimeOfDay{}, fmt.Errorf("date is required")
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return time.Time{}, domain.TimeOfDay{}, fmt.Errorf("invalid date: %w", err)
	}
	start := current
	if req.StartTime != "" {
		start, err = domain.ParseTimeOfDay(req.StartTime)
		if err != nil {
			return time.Time{}, domain.TimeOfDay{}, fmt.Errorf("invalid start_time: %w", err)
		}
	}
	return date, start, nil
}

func parseYear(raw string, now time.Time) (int, error) {
	if raw == "" {
		return now.Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	if year < minHolidayYear || year > maxHolidayYear {
		return 0, fmt.Errorf("year must be between %d and %d", minHolidayYear, maxHolidayYear)
	}
	return year, nil
}
