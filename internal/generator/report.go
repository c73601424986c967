package generator

import (
	"errors"
	"time"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

// Outcome is what happened to one series during a run.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeStoreFailed    Outcome = "store_failed"
	OutcomePlanFailed     Outcome = "plan_failed"
	OutcomeProviderFailed Outcome = "provider_failed"
	OutcomePersistFailed  Outcome = "persist_failed"
)

// Failed reports whether the outcome counts as a failure.
func (o Outcome) Failed() bool {
	return o != OutcomeCreated && o != OutcomeSkipped
}

// Result is the per-series record of a run. Occurrence is the created
// occurrence, or the existing one that caused a skip.
type Result struct {
	SeriesID   domain.SeriesID
	Outcome    Outcome
	Occurrence *domain.Occurrence
	Err        error
}

type Report struct {
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

func (r Report) Created() int {
	return r.count(func(o Outcome) bool { return o == OutcomeCreated })
}

func (r Report) Skipped() int {
	return r.count(func(o Outcome) bool { return o == OutcomeSkipped })
}

func (r Report) Failed() int {
	return r.count(Outcome.Failed)
}

func (r Report) count(match func(Outcome) bool) int {
	n := 0
	for _, res := range r.Results {
		if match(res.Outcome) {
			n++
		}
	}
	return n
}

// Err joins every per-series error, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
