// Package holiday computes observed US federal holidays.
//
// Fixed-date holidays falling on a Saturday are observed the preceding
// Friday; those falling on a Sunday are observed the following Monday.
// Weekday-rule holidays always land on a weekday and are never shifted.
// An observed date keeps belonging to its holiday's year, so New Year's Day
// of 2022 is observed on 2021-12-31 and listed under 2022.
package holiday

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

// Holiday is one federal holiday for a given year.
type Holiday struct {
	Name     string
	Date     time.Time // actual date
	Observed time.Time // date the holiday is observed on
}

type federalRule struct {
	name  string
	month time.Month
	day   int

	// weekday-rule holidays only
	option *rrule.ROption
}

var federalRules = []federalRule{
	fixed("New Year's Day", time.January, 1),
	weekdayRule("Martin Luther King Jr. Day", "FREQ=YEARLY;BYMONTH=1;BYDAY=+3MO"),
	weekdayRule("Presidents Day", "FREQ=YEARLY;BYMONTH=2;BYDAY=+3MO"),
	weekdayRule("Memorial Day", "FREQ=YEARLY;BYMONTH=5;BYDAY=-1MO"),
	fixed("Juneteenth National Independence Day", time.June, 19),
	fixed("Independence Day", time.July, 4),
	weekdayRule("Labor Day", "FREQ=YEARLY;BYMONTH=9;BYDAY=+1MO"),
	weekdayRule("Columbus Day", "FREQ=YEARLY;BYMONTH=10;BYDAY=+2MO"),
	fixed("Veterans Day", time.November, 11),
	weekdayRule("Thanksgiving Day", "FREQ=YEARLY;BYMONTH=11;BYDAY=+4TH"),
	fixed("Christmas Day", time.December, 25),
}

func fixed(name string, month time.Month, day int) federalRule {
	return federalRule{name: name, month: month, day: day}
}

func weekdayRule(name, rfc string) federalRule {
	opt, err := rrule.StrToROption(rfc)
	if err != nil {
		panic(fmt.Sprintf("holiday: bad rule for %s: %v", name, err))
	}
	return federalRule{name: name, option: opt}
}

func (r federalRule) in(year int) Holiday {
	if r.option == nil {
		date := domain.Date(year, r.month, r.day)
		return Holiday{Name: r.name, Date: date, Observed: observe(date)}
	}

	opt := *r.option
	opt.Dtstart = domain.Date(year, time.January, 1)
	opt.Count = 1
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		panic(fmt.Sprintf("holiday: build rule for %s %d: %v", r.name, year, err))
	}
	dates := rule.All()
	if len(dates) == 0 {
		panic(fmt.Sprintf("holiday: rule for %s yields nothing in %d", r.name, year))
	}
	date := domain.CivilDate(dates[0])
	return Holiday{Name: r.name, Date: date, Observed: date}
}

func observe(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, -1)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}

// Calendar answers holiday questions. Results are memoized per year for the
// lifetime of the Calendar; the cache is append-only and safe for
// concurrent use.
type Calendar struct {
	mu    sync.RWMutex
	years map[int][]Holiday
}

func New() *Calendar {
	return &Calendar{years: make(map[int][]Holiday)}
}

func (c *Calendar) forYear(year int) []Holiday {
	c.mu.RLock()
	hs, ok := c.years[year]
	c.mu.RUnlock()
	if ok {
		return hs
	}

	computed := make([]Holiday, 0, len(federalRules))
	for _, r := range federalRules {
		computed = append(computed, r.in(year))
	}
	sort.SliceStable(computed, func(i, j int) bool {
		return computed[i].Observed.Before(computed[j].Observed)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.years[year]; ok {
		return existing
	}
	c.years[year] = computed
	return computed
}

// Holidays returns the year's holidays ordered by observed date.
func (c *Calendar) Holidays(year int) []Holiday {
	hs := c.forYear(year)
	out := make([]Holiday, len(hs))
	copy(out, hs)
	return out
}

// FederalHolidays returns the eleven observed dates for year.
func (c *Calendar) FederalHolidays(year int) []time.Time {
	hs := c.forYear(year)
	out := make([]time.Time, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Observed)
	}
	return out
}

// HolidayOn returns the holiday observed on date, if any. Only the set of
// date's own year is consulted.
func (c *Calendar) HolidayOn(date time.Time) (Holiday, bool) {
	d := domain.CivilDate(date)
	for _, h := range c.forYear(d.Year()) {
		if h.Observed.Equal(d) {
			return h, true
		}
	}
	return Holiday{}, false
}

func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.HolidayOn(date)
	return ok
}

// IsBusinessDay reports whether date is a weekday and not a holiday.
func (c *Calendar) IsBusinessDay(date time.Time) bool {
	d := domain.CivilDate(date)
	return !domain.IsWeekend(d) && !c.IsHoliday(d)
}

// NextBusinessDay returns the earliest business day strictly after date.
func (c *Calendar) NextBusinessDay(date time.Time) time.Time {
	d := domain.CivilDate(date).AddDate(0, 0, 1)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// HolidaysBetween returns observed holiday dates in [start, end], ordered.
func (c *Calendar) HolidaysBetween(start, end time.Time) []time.Time {
	from := domain.CivilDate(start)
	to := domain.CivilDate(end)
	if to.Before(from) {
		return nil
	}

	var out []time.Time
	for year := from.Year(); year <= to.Year(); year++ {
		for _, d := range c.FederalHolidays(year) {
			if !d.Before(from) && !d.After(to) {
				out = append(out, d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
