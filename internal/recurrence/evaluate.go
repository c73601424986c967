// Package recurrence evaluates monthly recurrence rules such as
// "first monday" or "sunday after first thursday".
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Evaluate returns the date rule selects for month. Relative rules add their
// offset to the base date and may land outside month; that date is returned
// as is.
func Evaluate(rule domain.RecurrenceRule, month domain.YearMonth) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, err
	}
	return evaluate(rule, month)
}

func evaluate(rule domain.RecurrenceRule, month domain.YearMonth) (time.Time, error) {
	switch rule.Kind {
	case domain.RuleNthWeekday:
		return nthWeekday(month, rule.N, rule.Weekday)
	case domain.RuleRelative:
		base, err := evaluate(*rule.Base, month)
		if err != nil {
			return time.Time{}, err
		}
		return base.AddDate(0, 0, rule.OffsetDays), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown rule kind %q", domain.ErrInvalidSeriesConfiguration, rule.Kind)
	}
}

func nthWeekday(month domain.YearMonth, n int, wd time.Weekday) (time.Time, error) {
	day := rruleWeekdays[wd]
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.MONTHLY,
		Dtstart:   month.First(),
		Byweekday: []rrule.Weekday{day.Nth(n)},
		Count:     1,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidSeriesConfiguration, err)
	}

	occurrences := r.All()
	if len(occurrences) == 0 {
		return time.Time{}, fmt.Errorf("%w: no %s in %s", domain.ErrInvalidSeriesConfiguration, wd, month)
	}
	date := domain.CivilDate(occurrences[0])
	if domain.MonthOf(date) != month {
		return time.Time{}, fmt.Errorf("%w: ordinal %d %s not in %s", domain.ErrInvalidSeriesConfiguration, n, wd, month)
	}
	return date, nil
}
