package domain

import (
	"fmt"
	"strings"
	"time"
)

type RuleKind string

const (
	RuleNthWeekday RuleKind = "nth_weekday"
	RuleRelative   RuleKind = "relative"
)

// LastWeek selects the last occurrence of a weekday in the month.
const LastWeek = -1

// RecurrenceRule maps a calendar month to exactly one date.
//
// NthWeekday rules use N and Weekday. Relative rules evaluate Base and add
// OffsetDays; the result may fall in the following month.
type RecurrenceRule struct {
	Kind RuleKind

	N       int
	Weekday time.Weekday

	Base       *RecurrenceRule
	OffsetDays int
}

func NthWeekday(n int, wd time.Weekday) RecurrenceRule {
	return RecurrenceRule{Kind: RuleNthWeekday, N: n, Weekday: wd}
}

func RelativeTo(base RecurrenceRule, offsetDays int) RecurrenceRule {
	b := base
	return RecurrenceRule{Kind: RuleRelative, Base: &b, OffsetDays: offsetDays}
}

// Validate checks structural correctness. Errors wrap ErrInvalidSeriesConfiguration.
func (r RecurrenceRule) Validate() error {
	switch r.Kind {
	case RuleNthWeekday:
		if r.N != LastWeek && (r.N < 1 || r.N > 4) {
			return fmt.Errorf("%w: ordinal %d out of range (1..4 or last)", ErrInvalidSeriesConfiguration, r.N)
		}
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", ErrInvalidSeriesConfiguration, r.Weekday)
		}
		return nil
	case RuleRelative:
		if r.Base == nil {
			return fmt.Errorf("%w: relative rule without base", ErrInvalidSeriesConfiguration)
		}
		return r.Base.Validate()
	default:
		return fmt.Errorf("%w: unknown rule kind %q", ErrInvalidSeriesConfiguration, r.Kind)
	}
}

var ordinalNames = map[int]string{1: "first", 2: "second", 3: "third", 4: "fourth", LastWeek: "last"}

func (r RecurrenceRule) String() string {
	switch r.Kind {
	case RuleNthWeekday:
		return ordinalNames[r.N] + " " + strings.ToLower(r.Weekday.String())
	case RuleRelative:
		if r.Base == nil {
			return "invalid"
		}
		if r.Base.Kind == RuleNthWeekday && r.OffsetDays >= 1 && r.OffsetDays <= 7 {
			wd := time.Weekday((int(r.Base.Weekday) + r.OffsetDays) % 7)
			return strings.ToLower(wd.String()) + " after " + r.Base.String()
		}
		return fmt.Sprintf("%s %+d", r.Base.String(), r.OffsetDays)
	default:
		return "invalid"
	}
}
