package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

var ordinals = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
	"last": domain.LastWeek,
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseRule parses the textual rule forms:
//
//	first monday | first_monday | last friday
//	sunday after first thursday | friday before last monday
//	third thursday +3 | first monday -1
func ParseRule(s string) (domain.RecurrenceRule, error) {
	fields := strings.Fields(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", " ")))

	switch {
	case len(fields) == 2:
		return parseNth(fields[0], fields[1], s)

	case len(fields) == 3:
		base, err := parseNth(fields[0], fields[1], s)
		if err != nil {
			return domain.RecurrenceRule{}, err
		}
		if !strings.HasPrefix(fields[2], "+") && !strings.HasPrefix(fields[2], "-") {
			return domain.RecurrenceRule{}, invalid(s, "expected signed day offset, got %q", fields[2])
		}
		offset, err := strconv.Atoi(fields[2])
		if err != nil {
			return domain.RecurrenceRule{}, invalid(s, "bad day offset %q", fields[2])
		}
		return domain.RelativeTo(base, offset), nil

	case len(fields) == 4 && (fields[1] == "after" || fields[1] == "before"):
		target, ok := weekdayNames[fields[0]]
		if !ok {
			return domain.RecurrenceRule{}, invalid(s, "unknown weekday %q", fields[0])
		}
		base, err := parseNth(fields[2], fields[3], s)
		if err != nil {
			return domain.RecurrenceRule{}, err
		}
		if fields[1] == "after" {
			return domain.RelativeTo(base, daysAfter(base.Weekday, target)), nil
		}
		return domain.RelativeTo(base, -daysAfter(target, base.Weekday)), nil
	}

	return domain.RecurrenceRule{}, invalid(s, "unrecognized rule")
}

// MustParseRule is like ParseRule but panics on error. Only for static tables.
func MustParseRule(s string) domain.RecurrenceRule {
	r, err := ParseRule(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseNth(ordinal, weekday, raw string) (domain.RecurrenceRule, error) {
	n, ok := ordinals[ordinal]
	if !ok {
		return domain.RecurrenceRule{}, invalid(raw, "unknown ordinal %q", ordinal)
	}
	wd, ok := weekdayNames[weekday]
	if !ok {
		return domain.RecurrenceRule{}, invalid(raw, "unknown weekday %q", weekday)
	}
	return domain.NthWeekday(n, wd), nil
}

// daysAfter returns the number of days (1..7) from one weekday to the next
// occurrence of another.
func daysAfter(from, to time.Weekday) int {
	d := (int(to) - int(from) + 7) % 7
	if d == 0 {
		return 7
	}
	return d
}

func invalid(raw, format string, args ...any) error {
	return fmt.Errorf("%w: rule %q: %s", domain.ErrInvalidSeriesConfiguration, raw, fmt.Sprintf(format, args...))
}
