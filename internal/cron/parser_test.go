package cron

import (
	"testing"
	"time"
)

func TestParser_ValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"default daily", DefaultExpression},
		{"weekdays at 7", "0 7 * * 1-5"},
		{"first of month", "0 6 1 * *"},
		{"every 15 minutes", "*/15 * * * *"},
		{"daily descriptor", "@daily"},
		{"hourly descriptor", "@hourly"},
		{"interval descriptor", "@every 12h"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, "America/New_York")
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.expr, err)
			}
			if sched == nil {
				t.Fatalf("Parse(%q) returned nil schedule", tt.expr)
			}
		})
	}
}

func TestParser_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"too few fields", "0 6 *"},
		{"seconds field", "0 0 6 * * *"},
		{"minute out of range", "60 6 * * *"},
		{"unknown descriptor", "@fortnightly"},
		{"garbage", "daily at six"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(tt.expr, "UTC"); err == nil {
				t.Errorf("Parse(%q) should fail", tt.expr)
			}
		})
	}
}

func TestParser_InvalidTimezone(t *testing.T) {
	if _, err := NewParser().Parse(DefaultExpression, "America/Springfield"); err == nil {
		t.Error("Parse with unknown timezone should fail")
	}
}

func TestSchedule_NextInLocation(t *testing.T) {
	ny := mustLoadLocation("America/New_York")
	sched, err := NewParser().ParseInLocation(DefaultExpression, ny)
	if err != nil {
		t.Fatalf("ParseInLocation failed: %v", err)
	}

	// 05:00 EDT is 09:00 UTC; the same day's 06:00 EDT is next.
	after := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 15, 6, 0, 0, 0, ny)
	if got := sched.Next(after); !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", after, got, want)
	}

	// At exactly 06:00 the next fire is tomorrow.
	if got := sched.Next(want); !got.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("Next(%v) = %v, want next day", want, got)
	}
}

func TestSchedule_DescriptorDailyIsMidnightLocal(t *testing.T) {
	ny := mustLoadLocation("America/New_York")
	sched, err := NewParser().ParseInLocation("@daily", ny)
	if err != nil {
		t.Fatalf("ParseInLocation failed: %v", err)
	}
	got := sched.Next(time.Date(2024, 1, 15, 12, 0, 0, 0, ny))
	want := time.Date(2024, 1, 16, 0, 0, 0, 0, ny)
	if !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestSchedule_DSTFallBack(t *testing.T) {
	ny := mustLoadLocation("America/New_York")
	sched, err := NewParser().ParseInLocation(DefaultExpression, ny)
	if err != nil {
		t.Fatalf("ParseInLocation failed: %v", err)
	}

	// Nov 3 2024 falls back at 02:00; 06:00 local still fires once that day.
	next := sched.Next(time.Date(2024, 11, 3, 0, 0, 0, 0, ny))
	if next.Day() != 3 || next.Hour() != 6 {
		t.Errorf("expected Nov 3 06:00, got %v", next)
	}
	if _, offset := next.Zone(); offset != -5*3600 {
		t.Errorf("expected EST offset after fall back, got %d", offset)
	}
}

func TestUpcoming(t *testing.T) {
	sched, err := NewParser().Parse(DefaultExpression, "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	from := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	got := Upcoming(sched, from, 3)
	if len(got) != 3 {
		t.Fatalf("Upcoming returned %d times, want 3", len(got))
	}
	want := []time.Time{
		time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 2, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 3, 6, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("Upcoming[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("mustLoadLocation: " + err.Error())
	}
	return loc
}
