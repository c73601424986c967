package generator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/planner"
)

// Store persists occurrences.
type Store interface {
	// FindFutureOccurrence returns the earliest occurrence of the series dated on
	// or after from whose status is not in exclude.
	FindFutureOccurrence(ctx context.Context, seriesID domain.SeriesID, from time.Time, exclude []domain.OccurrenceStatus) (mo.Option[domain.Occurrence], error)
	// CreateOccurrence returns domain.ErrDuplicateOccurrence if a recurring
	// occurrence already exists for the same series and date.
	CreateOccurrence(ctx context.Context, occ domain.Occurrence) error
	GetOccurrence(ctx context.Context, id uuid.UUID) (domain.Occurrence, error)
	UpdateOccurrence(ctx context.Context, id uuid.UUID, upd domain.OccurrenceUpdate) error
	DeleteOccurrence(ctx context.Context, id uuid.UUID) error
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.Occurrence, error)
	// CompletePastOccurrences marks scheduled occurrences dated before the given
	// date as completed and returns how many changed.
	CompletePastOccurrences(ctx context.Context, before time.Time, now time.Time) (int, error)
}

type MeetingProvider interface {
	Create(ctx context.Context, req domain.MeetingRequest) domain.ProviderResult
	Update(ctx context.Context, remoteID string, req domain.MeetingRequest) domain.ProviderResult
	Delete(ctx context.Context, remoteID string) domain.ProviderResult
}

type OccurrencePlanner interface {
	Plan(series domain.MeetingSeries, month domain.YearMonth) (planner.Plan, error)
}

// SeriesSource supplies the configured series. It is read once per run.
// A domain.InvalidSeriesErrors error may accompany usable series; the
// listed entries are reported as invalid and the rest still run.
type SeriesSource interface {
	Series(ctx context.Context) ([]domain.MeetingSeries, error)
}

// StaticSeries is a fixed SeriesSource.
type StaticSeries []domain.MeetingSeries

func (s StaticSeries) Series(context.Context) ([]domain.MeetingSeries, error) {
	out := make([]domain.MeetingSeries, len(s))
	copy(out, s)
	return out, nil
}

// RunLock serializes generation runs across processes.
// TryLock must not block waiting for the lock.
type RunLock interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}

// MetricsSink defines the interface for recording generator metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	RunStarted(trigger string)
	RunCompleted(duration time.Duration, created, failed int, err error)
	RunLockContended()
	SeriesOutcome(outcome string)
	OccurrencesCompleted(count int)
}
