// Package generator keeps one future meeting booked for every configured
// series. Each run walks the series in order and, for a series without an
// active future occurrence, plans next month's date, hosts the meeting with
// the provider and records it.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/metrics"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("generation run already in progress")

type Generator struct {
	store    Store
	provider MeetingProvider
	planner  OccurrencePlanner
	series   SeriesSource
	loc      *time.Location

	lock    RunLock     // optional, nil = no cross-process lock
	metrics MetricsSink // optional, nil = disabled

	logger *zap.Logger
	clock  func() time.Time
}

func New(store Store, provider MeetingProvider, planner OccurrencePlanner, series SeriesSource, loc *time.Location, logger *zap.Logger) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:    store,
		provider: provider,
		planner:  planner,
		series:   series,
		loc:      loc,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithRunLock guards each run with lock.
func (g *Generator) WithRunLock(lock RunLock) *Generator {
	g.lock = lock
	return g
}

// WithMetrics attaches a metrics sink to the generator.
func (g *Generator) WithMetrics(sink MetricsSink) *Generator {
	g.metrics = sink
	return g
}

func (g *Generator) WithClock(clock func() time.Time) *Generator {
	g.clock = clock
	return g
}

// Location is the timezone meetings are scheduled in.
func (g *Generator) Location() *time.Location {
	return g.loc
}

// Generate runs the protocol once for every series.
func (g *Generator) Generate(ctx context.Context) (Report, error) {
	return g.generate(ctx, metrics.TriggerScheduled)
}

// Seed is the run performed once at initialization.
func (g *Generator) Seed(ctx context.Context) (Report, error) {
	return g.generate(ctx, metrics.TriggerSeed)
}

// GenerateNow is an operator-requested run.
func (g *Generator) GenerateNow(ctx context.Context) (Report, error) {
	return g.generate(ctx, metrics.TriggerManual)
}

// Run is the daily job: complete past occurrences, then generate.
// A failure to complete past occurrences is logged and does not stop generation.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	if _, err := g.CompletePast(ctx); err != nil {
		g.logger.Warn("completing past occurrences failed", zap.Error(err))
	}
	return g.Generate(ctx)
}

// CompletePast marks scheduled occurrences dated before today as completed.
func (g *Generator) CompletePast(ctx context.Context) (int, error) {
	now := g.clock()
	n, err := g.store.CompletePastOccurrences(ctx, g.today(now), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("complete past occurrences: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if g.metrics != nil {
		g.metrics.OccurrencesCompleted(n)
	}
	if n > 0 {
		g.logger.Info("past occurrences completed", zap.Int("count", n))
	}
	return n, nil
}

func (g *Generator) generate(ctx context.Context, trigger string) (Report, error) {
	report := Report{Trigger: trigger, StartedAt: g.clock()}

	if g.lock != nil {
		release, acquired, err := g.lock.TryLock(ctx)
		switch {
		case err != nil:
			g.logger.Warn("run lock unavailable, proceeding without it", zap.Error(err))
		case !acquired:
			g.logger.Info("generation skipped, another run holds the lock", zap.String("trigger", trigger))
			if g.metrics != nil {
				g.metrics.RunLockContended()
			}
			report.FinishedAt = g.clock()
			return report, ErrRunInProgress
		default:
			defer release()
		}
	}

	if g.metrics != nil {
		g.metrics.RunStarted(trigger)
	}

	err := g.processAll(ctx, &report)
	report.FinishedAt = g.clock()

	if g.metrics != nil {
		g.metrics.RunCompleted(report.Duration(), report.Created(), report.Failed(), err)
	}

	fields := []zap.Field{
		zap.String("trigger", trigger),
		zap.Int("created", report.Created()),
		zap.Int("skipped", report.Skipped()),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Duration()),
	}
	if err != nil {
		g.logger.Error("generation run aborted", append(fields, zap.Error(err))...)
		return report, err
	}
	if report.Failed() > 0 {
		g.logger.Warn("generation run completed with failures", fields...)
	} else {
		g.logger.Info("generation run completed", fields...)
	}
	return report, nil
}

func (g *Generator) processAll(ctx context.Context, report *Report) error {
	series, err := g.series.Series(ctx)
	var invalid domain.InvalidSeriesErrors
	if err != nil && !errors.As(err, &invalid) {
		return fmt.Errorf("load series: %w", err)
	}
	for _, bad := range invalid {
		g.logger.Error("series skipped, invalid configuration",
			zap.String("series", string(bad.ID)),
			zap.Error(bad.Err),
		)
		report.Results = append(report.Results, Result{SeriesID: bad.ID, Outcome: OutcomeInvalid, Err: bad})
		if g.metrics != nil {
			g.metrics.SeriesOutcome(string(OutcomeInvalid))
		}
	}

	now := g.clock().In(g.loc)
	today := g.today(now)
	target := domain.MonthOf(now).Next()

	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := g.processSeries(ctx, s, today, target)
		report.Results = append(report.Results, res)
		if g.metrics != nil {
			g.metrics.SeriesOutcome(string(res.Outcome))
		}
	}
	return nil
}

// processSeries applies Check, Plan, Provision and Persist to one series.
func (g *Generator) processSeries(ctx context.Context, s domain.MeetingSeries, today time.Time, target domain.YearMonth) Result {
	res := Result{SeriesID: s.ID}
	log := g.logger.With(zap.String("series", string(s.ID)))

	if err := s.Validate(); err != nil {
		log.Error("series skipped, invalid configuration", zap.Error(err))
		res.Outcome, res.Err = OutcomeInvalid, err
		return res
	}

	existing, err := g.store.FindFutureOccurrence(ctx, s.ID, today, domain.InactiveStatuses)
	if err != nil {
		log.Error("checking for future occurrence failed", zap.Error(err))
		res.Outcome = OutcomeStoreFailed
		res.Err = fmt.Errorf("series %s: check future occurrence: %w: %w", s.ID, domain.ErrStoreUnavailable, err)
		return res
	}
	if occ, ok := existing.Get(); ok {
		log.Debug("future occurrence exists",
			zap.String("date", domain.FormatDate(occ.Date)),
			zap.String("occurrence_id", occ.ID.String()),
		)
		res.Outcome, res.Occurrence = OutcomeSkipped, &occ
		return res
	}

	plan, err := g.planner.Plan(s, target)
	if err == nil && plan.Date.Before(today) {
		// A negative offset can pull next month's date into the past, where
		// the check above would never see it again.
		log.Info("planned date already passed, planning following month",
			zap.String("date", domain.FormatDate(plan.Date)),
		)
		target = target.Next()
		plan, err = g.planner.Plan(s, target)
	}
	if err != nil {
		log.Error("planning failed", zap.String("month", target.String()), zap.Error(err))
		res.Outcome = OutcomePlanFailed
		if errors.Is(err, domain.ErrInvalidSeriesConfiguration) {
			res.Outcome = OutcomeInvalid
		}
		res.Err = fmt.Errorf("series %s: plan %s: %w", s.ID, target, err)
		return res
	}
	date := domain.FormatDate(plan.Date)
	if plan.Shifted() {
		log.Info("meeting moved off holiday",
			zap.String("nominal", domain.FormatDate(plan.Nominal)),
			zap.String("date", date),
			zap.Int("shifts", plan.Shifts),
		)
	}

	req := domain.MeetingRequest{
		Topic:           Topic(s.Name, plan.Date),
		Start:           s.StartTime.On(plan.Date, g.loc),
		Timezone:        g.loc.String(),
		DurationMinutes: s.DurationMinutes,
	}
	pr := g.provider.Create(ctx, req)
	if !pr.IsSuccess() {
		log.Error("provider create failed", zap.String("date", date), zap.String("reason", pr.Reason()))
		res.Outcome = OutcomeProviderFailed
		res.Err = fmt.Errorf("series %s: create meeting for %s: %w", s.ID, date, pr.AsError())
		return res
	}

	created := g.clock().UTC()
	occ := domain.Occurrence{
		ID:              uuid.New(),
		SeriesID:        s.ID,
		Title:           req.Topic,
		Date:            plan.Date,
		StartTime:       s.StartTime,
		DurationMinutes: s.DurationMinutes,
		RemoteID:        pr.Meeting.ID,
		JoinURL:         pr.Meeting.JoinURL,
		Status:          domain.OccurrenceStatusScheduled,
		Recurring:       true,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	if err := g.store.CreateOccurrence(ctx, occ); err != nil {
		// The remote meeting now exists without a record.
		log.Error("occurrence not persisted, remote meeting orphaned",
			zap.String("date", date),
			zap.String("remote_id", pr.Meeting.ID),
			zap.Error(err),
		)
		res.Outcome = OutcomePersistFailed
		res.Err = fmt.Errorf("series %s: persist occurrence for %s: %w: %w", s.ID, date, domain.ErrPersistenceFailure, err)
		return res
	}

	log.Info("occurrence created",
		zap.String("date", date),
		zap.String("occurrence_id", occ.ID.String()),
		zap.String("remote_id", occ.RemoteID),
	)
	res.Outcome, res.Occurrence = OutcomeCreated, &occ
	return res
}

func (g *Generator) today(now time.Time) time.Time {
	return domain.CivilDate(now.In(g.loc))
}

// Topic is the provider meeting title for a series occurrence.
func Topic(seriesName string, date time.Time) string {
	return fmt.Sprintf("%s Meeting - %s", seriesName, date.Format("January 2006"))
}
