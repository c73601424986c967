package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/metrics"
	"github.com/djlord-it/easy-meetings/internal/testutil"
)

func at(t *testing.T, y int, m time.Month, d, hour int) time.Time {
	t.Helper()
	return time.Date(y, m, d, hour, 0, 0, 0, testutil.NewYork(t))
}

func TestGenerate_CreatesNextMonthOccurrences(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))

	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 3, report.Created())
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, 3, h.provider.createCount())

	occs := h.store.All()
	require.Len(t, occs, 3)
	assert.Equal(t, domain.Date(2024, time.July, 1), occs[0].Date)
	assert.Equal(t, domain.Date(2024, time.July, 8), occs[1].Date)
	assert.Equal(t, domain.Date(2024, time.July, 15), occs[2].Date)

	first := occs[0]
	assert.Equal(t, domain.SeriesID("topic"), first.SeriesID)
	assert.Equal(t, "Monthly Topic with Rhonda Meeting - July 2024", first.Title)
	assert.Equal(t, domain.OccurrenceStatusScheduled, first.Status)
	assert.True(t, first.Recurring)
	assert.Equal(t, "1001", first.RemoteID)
	assert.Equal(t, "https://zoom.us/j/1001", first.JoinURL)
	assert.Equal(t, 60, first.DurationMinutes)

	req := h.provider.creates[0]
	assert.True(t, req.Start.Equal(time.Date(2024, 7, 1, 19, 0, 0, 0, h.loc)), "start = %s", req.Start)
	assert.Equal(t, "America/New_York", req.Timezone)
	assert.Equal(t, 60, req.DurationMinutes)

	require.NotNil(t, report.Results[0].Occurrence)
	assert.Equal(t, first.ID, report.Results[0].Occurrence.ID)
}

func TestGenerate_Idempotent(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	ctx := context.Background()

	_, err := h.gen.Generate(ctx)
	require.NoError(t, err)
	before := h.store.All()

	report, err := h.gen.Generate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, h.provider.createCount(), "second run must not call the provider")
	assert.Equal(t, before, h.store.All())
	assert.Equal(t, 0, report.Created())
	assert.Equal(t, 3, report.Skipped())
	for _, res := range report.Results {
		assert.Equal(t, OutcomeSkipped, res.Outcome)
		require.NotNil(t, res.Occurrence)
	}
}

func TestGenerate_HolidayShift(t *testing.T) {
	src := StaticSeries{
		series("topic", "Monthly Topic with Rhonda", "first monday"),
		series("qa", "Q&A: Ask Us Anything", "third monday"),
	}
	h := newHarness(t, src, at(t, 2023, time.December, 10, 9))

	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Created())

	occs := h.store.All()
	assert.Equal(t, domain.Date(2024, time.January, 2), occs[0].Date, "New Year's Day moves to Tuesday")
	assert.Equal(t, "Monthly Topic with Rhonda Meeting - January 2024", occs[0].Title)
	assert.Equal(t, domain.Date(2024, time.January, 16), occs[1].Date, "MLK Day moves to Tuesday")

	shifted := h.logs.FilterMessage("meeting moved off holiday").All()
	assert.Len(t, shifted, 2)
}

func TestGenerate_WeekendRuleKept(t *testing.T) {
	src := StaticSeries{series("social", "Social", "sunday after first thursday")}
	h := newHarness(t, src, at(t, 2024, time.January, 20, 9))

	_, err := h.gen.Generate(context.Background())
	require.NoError(t, err)

	occs := h.store.All()
	require.Len(t, occs, 1)
	assert.Equal(t, domain.Date(2024, time.February, 4), occs[0].Date)
}

func TestGenerate_ProviderFailureIsolated(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	h.provider.failTopics = []string{"Get-it-Done!"}

	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, OutcomeProviderFailed, report.Results[1].Outcome)
	assert.ErrorIs(t, report.Err(), domain.ErrProviderFailure)
	assert.ErrorIs(t, report.Results[1].Err, domain.ErrProviderFailure)

	for _, occ := range h.store.All() {
		assert.NotEqual(t, domain.SeriesID("getitdone"), occ.SeriesID, "no record without a remote meeting")
	}

	// The failed series is retried on the next run and only it reaches the provider.
	h.provider.failTopics = nil
	report, err = h.gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created())
	assert.Equal(t, 4, h.provider.createCount())
}

func TestGenerate_PersistenceFailureLogsRemoteID(t *testing.T) {
	h := newHarness(t, defaultSeries()[:1], at(t, 2024, time.June, 15, 10))
	h.store.createErr = errors.New("connection reset by peer")

	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, OutcomePersistFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrPersistenceFailure)
	assert.Empty(t, h.store.All())

	entries := h.logs.FilterMessage("occurrence not persisted, remote meeting orphaned").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "1001", fields["remote_id"])
	assert.Equal(t, "topic", fields["series"])
	assert.Equal(t, "2024-07-01", fields["date"])
}

func TestGenerate_ConcurrentRunLosesUniqueGuard(t *testing.T) {
	h := newHarness(t, defaultSeries()[:1], at(t, 2024, time.June, 15, 10))
	ctx := context.Background()

	_, err := h.gen.Generate(ctx)
	require.NoError(t, err)

	h.store.blind = true
	report, err := h.gen.Generate(ctx)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, OutcomePersistFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, res.Err, domain.ErrDuplicateOccurrence)
	assert.Len(t, h.store.All(), 1)
}

func TestGenerate_StoreReadFailure(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	h.store.findErr = errors.New("too many connections")

	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Failed())
	assert.Zero(t, h.provider.createCount())
	for _, res := range report.Results {
		assert.Equal(t, OutcomeStoreFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, domain.ErrStoreUnavailable)
	}
}

func TestGenerate_InvalidSeriesSkipped(t *testing.T) {
	bad := series("broken", "Broken", "first monday")
	bad.DurationMinutes = 0
	src := StaticSeries{bad, series("qa", "Q&A: Ask Us Anything", "third monday")}
	h := newHarness(t, src, at(t, 2024, time.June, 15, 10))

	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvalid, report.Results[0].Outcome)
	assert.ErrorIs(t, report.Results[0].Err, domain.ErrInvalidSeriesConfiguration)
	assert.Equal(t, OutcomeCreated, report.Results[1].Outcome)
	assert.Equal(t, 1, h.provider.createCount())
}

func TestGenerate_NegativeOffsetNeverBooksThePast(t *testing.T) {
	// September 2024 starts on a Monday, so the rule lands on August 30.
	src := StaticSeries{series("prep", "Prep Call", "friday before first monday")}
	h := newHarness(t, src, at(t, 2024, time.August, 31, 10))
	ctx := context.Background()

	first, err := h.gen.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, first.Results[0].Outcome)
	assert.Equal(t, domain.Date(2024, time.October, 4), first.Results[0].Occurrence.Date)

	second, err := h.gen.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second.Results[0].Outcome)
	assert.Equal(t, 1, h.provider.createCount())
	assert.Len(t, h.store.All(), 1)
}

func TestGenerate_PastAndCancelledDoNotBlock(t *testing.T) {
	h := newHarness(t, defaultSeries()[:1], at(t, 2024, time.June, 15, 10))
	ctx := context.Background()

	past := domain.Occurrence{ID: [16]byte{1}, SeriesID: "topic", Date: domain.Date(2024, time.June, 3),
		Status: domain.OccurrenceStatusScheduled, Recurring: true}
	cancelled := domain.Occurrence{ID: [16]byte{2}, SeriesID: "topic", Date: domain.Date(2024, time.July, 1),
		Status: domain.OccurrenceStatusCancelled, Recurring: true}
	require.NoError(t, h.store.CreateOccurrence(ctx, past))
	require.NoError(t, h.store.CreateOccurrence(ctx, cancelled))

	report, err := h.gen.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created())
}

func TestGenerate_RollsForwardAfterOccurrencePasses(t *testing.T) {
	h := newHarness(t, defaultSeries()[:2], at(t, 2024, time.June, 15, 10))
	ctx := context.Background()

	_, err := h.gen.Generate(ctx)
	require.NoError(t, err)

	// July 1 has passed, July 8 has not.
	h.clock.Set(at(t, 2024, time.July, 2, 6))
	report, err := h.gen.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, report.Results[0].Outcome)
	assert.Equal(t, domain.Date(2024, time.August, 5), report.Results[0].Occurrence.Date)
	assert.Equal(t, OutcomeSkipped, report.Results[1].Outcome)

	var statuses []domain.OccurrenceStatus
	for _, occ := range h.store.All() {
		statuses = append(statuses, occ.Status)
	}
	assert.Equal(t, []domain.OccurrenceStatus{
		domain.OccurrenceStatusCompleted,
		domain.OccurrenceStatusScheduled,
		domain.OccurrenceStatusScheduled,
	}, statuses)
}

func TestGenerate_BadSeriesEntryOnlySkipsItself(t *testing.T) {
	ruleErr := fmt.Errorf("series %q: %w", "bad", domain.ErrInvalidSeriesConfiguration)
	src := partialSource{
		series:  []domain.MeetingSeries{series("topic", "Monthly Topic with Rhonda", "first monday")},
		invalid: domain.InvalidSeriesErrors{{ID: "bad", Err: ruleErr}},
	}
	h := newHarness(t, src, at(t, 2024, time.June, 15, 10))
	sink := newCountingSink()
	h.gen.WithMetrics(sink)

	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.Equal(t, domain.SeriesID("bad"), report.Results[0].SeriesID)
	assert.Equal(t, OutcomeInvalid, report.Results[0].Outcome)
	assert.ErrorIs(t, report.Results[0].Err, domain.ErrInvalidSeriesConfiguration)
	assert.Equal(t, OutcomeCreated, report.Results[1].Outcome)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, h.provider.createCount())
	assert.Equal(t, 1, sink.outcomes[string(OutcomeInvalid)])

	skipped := h.logs.FilterMessage("series skipped, invalid configuration").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad", skipped[0].ContextMap()["series"])
}

func TestGenerate_SeriesSourceError(t *testing.T) {
	h := newHarness(t, brokenSource{}, at(t, 2024, time.June, 15, 10))

	_, err := h.gen.Generate(context.Background())
	assert.ErrorIs(t, err, errSeriesSource)
	assert.Zero(t, h.provider.createCount())
}

func TestGenerate_ContextCancelled(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.gen.Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}

func TestGenerate_RunLock(t *testing.T) {
	ctx := context.Background()
	now := at(t, 2024, time.June, 15, 10)

	t.Run("busy", func(t *testing.T) {
		h := newHarness(t, defaultSeries(), now)
		lock := &fakeLock{acquired: false}
		sink := newCountingSink()
		h.gen.WithRunLock(lock).WithMetrics(sink)

		report, err := h.gen.Generate(ctx)
		assert.ErrorIs(t, err, ErrRunInProgress)
		assert.Empty(t, report.Results)
		assert.Zero(t, h.provider.createCount())
		assert.Equal(t, 1, sink.contended)
		assert.Empty(t, sink.started)
	})

	t.Run("acquired", func(t *testing.T) {
		h := newHarness(t, defaultSeries(), now)
		lock := &fakeLock{acquired: true}
		h.gen.WithRunLock(lock)

		report, err := h.gen.Generate(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Created())
		assert.Equal(t, 1, lock.released)
	})

	t.Run("backend error proceeds", func(t *testing.T) {
		h := newHarness(t, defaultSeries(), now)
		lock := &fakeLock{err: errors.New("redis: connection refused")}
		h.gen.WithRunLock(lock)

		report, err := h.gen.Generate(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Created())
		assert.Equal(t, 1, h.logs.FilterMessage("run lock unavailable, proceeding without it").Len())
	})
}

func TestGenerate_Metrics(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	h.provider.failTopics = []string{"Q&A"}
	sink := newCountingSink()
	h.gen.WithMetrics(sink)

	_, err := h.gen.Seed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{metrics.TriggerSeed}, sink.started)
	assert.Equal(t, 1, sink.runs)
	assert.Equal(t, 2, sink.outcomes[string(OutcomeCreated)])
	assert.Equal(t, 1, sink.outcomes[string(OutcomeProviderFailed)])
}

func TestCompletePast(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	ctx := context.Background()
	sink := newCountingSink()
	h.gen.WithMetrics(sink)

	_, err := h.gen.Generate(ctx)
	require.NoError(t, err)

	h.clock.Set(at(t, 2024, time.July, 9, 6))
	n, err := h.gen.CompletePast(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, sink.completed)

	// Running again changes nothing.
	n, err = h.gen.CompletePast(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReport(t *testing.T) {
	errA := errors.New("a")
	r := Report{Results: []Result{
		{SeriesID: "a", Outcome: OutcomeProviderFailed, Err: errA},
		{SeriesID: "b", Outcome: OutcomeCreated},
		{SeriesID: "c", Outcome: OutcomeSkipped},
	}}
	assert.Equal(t, 1, r.Created())
	assert.Equal(t, 1, r.Skipped())
	assert.Equal(t, 1, r.Failed())
	assert.ErrorIs(t, r.Err(), errA)
	assert.NoError(t, Report{}.Err())
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "Q&A: Ask Us Anything Meeting - March 2025", Topic("Q&A: Ask Us Anything", domain.Date(2025, time.March, 17)))
}
