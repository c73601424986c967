// Package planner turns a series' recurrence rule into the concrete date of
// its next occurrence, moving it off federal holidays.
package planner

import (
	"fmt"
	"time"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/recurrence"
)

// DefaultMaxShifts bounds the holiday shift loop.
const DefaultMaxShifts = 10

type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
	NextBusinessDay(date time.Time) time.Time
}

// Plan is the outcome of planning one occurrence.
type Plan struct {
	Month   domain.YearMonth
	Nominal time.Time // date selected by the rule
	Date    time.Time // date after holiday shifting
	Shifts  int
}

func (p Plan) Shifted() bool {
	return !p.Date.Equal(p.Nominal)
}

type Planner struct {
	calendar  HolidayCalendar
	maxShifts int
}

func New(calendar HolidayCalendar) *Planner {
	return &Planner{calendar: calendar, maxShifts: DefaultMaxShifts}
}

// WithMaxShifts overrides the shift bound.
func (p *Planner) WithMaxShifts(n int) *Planner {
	if n > 0 {
		p.maxShifts = n
	}
	return p
}

// Plan evaluates the series rule for month and shifts a holiday result to
// the next business day. A shifted date is not re-checked against the rule.
// A nominal date on a weekend that is not a holiday is kept.
func (p *Planner) Plan(series domain.MeetingSeries, month domain.YearMonth) (Plan, error) {
	nominal, err := recurrence.Evaluate(series.Rule, month)
	if err != nil {
		return Plan{}, fmt.Errorf("series %s: %w", series.ID, err)
	}

	plan := Plan{Month: month, Nominal: nominal, Date: nominal}
	for p.calendar.IsHoliday(plan.Date) {
		if plan.Shifts >= p.maxShifts {
			return Plan{}, fmt.Errorf("series %s: %s still a holiday after %d shifts from %s: %w",
				series.ID, domain.FormatDate(plan.Date), plan.Shifts, domain.FormatDate(nominal),
				domain.ErrHolidayResolutionExhausted)
		}
		plan.Date = p.calendar.NextBusinessDay(plan.Date)
		plan.Shifts++
	}
	return plan, nil
}

// NextOccurrenceDate returns only the planned date.
func (p *Planner) NextOccurrenceDate(series domain.MeetingSeries, month domain.YearMonth) (time.Time, error) {
	plan, err := p.Plan(series, month)
	if err != nil {
		return time.Time{}, err
	}
	return plan.Date, nil
}
