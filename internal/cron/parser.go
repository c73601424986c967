// Package cron parses the trigger cadence: standard five-field expressions
// and descriptors such as @daily, evaluated in a fixed timezone.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultExpression fires once a day at 06:00.
const DefaultExpression = "0 6 * * *"

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Parse parses expression in the named timezone.
func (p *Parser) Parse(expression string, timezone string) (Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return p.ParseInLocation(expression, loc)
}

func (p *Parser) ParseInLocation(expression string, loc *time.Location) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expression, err)
	}
	return &schedule{sched: sched, loc: loc}, nil
}

type Schedule interface {
	// Next returns the first fire time strictly after the given instant,
	// expressed in the schedule's timezone.
	Next(after time.Time) time.Time
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

// Upcoming lists the next n fire times after from.
func Upcoming(s Schedule, from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}
