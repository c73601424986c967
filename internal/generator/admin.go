package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

// ErrInvalidRequest is returned for malformed administrative requests.
var ErrInvalidRequest = errors.New("invalid request")

// SingleSeriesID tags one-off occurrences that belong to no configured series.
const SingleSeriesID domain.SeriesID = "single"

const defaultUpcomingLimit = 50

// SingleRequest describes a one-off meeting.
type SingleRequest struct {
	SeriesID        domain.SeriesID // optional, defaults to SingleSeriesID
	Title           string
	Date            time.Time
	StartTime       domain.TimeOfDay
	DurationMinutes int
}

func (r SingleRequest) validate(today time.Time) error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if r.Date.Before(today) {
		return fmt.Errorf("%w: date %s is in the past", ErrInvalidRequest, domain.FormatDate(r.Date))
	}
	if r.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	return nil
}

// CreateSingle hosts and records a one-off meeting. Unlike a generation run it
// does not check for an existing future occurrence.
func (g *Generator) CreateSingle(ctx context.Context, req SingleRequest) (domain.Occurrence, error) {
	now := g.clock()
	req.Date = domain.CivilDate(req.Date)
	if err := req.validate(g.today(now)); err != nil {
		return domain.Occurrence{}, err
	}
	if req.SeriesID == "" {
		req.SeriesID = SingleSeriesID
	}

	mreq := domain.MeetingRequest{
		Topic:           req.Title,
		Start:           req.StartTime.On(req.Date, g.loc),
		Timezone:        g.loc.String(),
		DurationMinutes: req.DurationMinutes,
	}
	pr := g.provider.Create(ctx, mreq)
	if !pr.IsSuccess() {
		return domain.Occurrence{}, fmt.Errorf("create meeting: %w", pr.AsError())
	}

	occ := domain.Occurrence{
		ID:              uuid.New(),
		SeriesID:        req.SeriesID,
		Title:           req.Title,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		RemoteID:        pr.Meeting.ID,
		JoinURL:         pr.Meeting.JoinURL,
		Status:          domain.OccurrenceStatusScheduled,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if err := g.store.CreateOccurrence(ctx, occ); err != nil {
		g.logger.Error("single occurrence not persisted, remote meeting orphaned",
			zap.String("series", string(occ.SeriesID)),
			zap.String("date", domain.FormatDate(occ.Date)),
			zap.String("remote_id", occ.RemoteID),
			zap.Error(err),
		)
		return domain.Occurrence{}, fmt.Errorf("persist occurrence: %w: %w", domain.ErrPersistenceFailure, err)
	}

	g.logger.Info("single occurrence created",
		zap.String("series", string(occ.SeriesID)),
		zap.String("date", domain.FormatDate(occ.Date)),
		zap.String("occurrence_id", occ.ID.String()),
		zap.String("remote_id", occ.RemoteID),
	)
	return occ, nil
}

// Reschedule moves an active occurrence. The provider is updated first and the
// record only changes once the provider accepted the new time.
func (g *Generator) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, start domain.TimeOfDay) (domain.Occurrence, error) {
	occ, err := g.store.GetOccurrence(ctx, id)
	if err != nil {
		return domain.Occurrence{}, err
	}
	if !occ.IsActive() {
		return domain.Occurrence{}, fmt.Errorf("%w: occurrence %s is %s", ErrInvalidRequest, id, occ.Status)
	}
	now := g.clock()
	date = domain.CivilDate(date)
	if date.Before(g.today(now)) {
		return domain.Occurrence{}, fmt.Errorf("%w: date %s is in the past", ErrInvalidRequest, domain.FormatDate(date))
	}

	pr := g.provider.Update(ctx, occ.RemoteID, domain.MeetingRequest{
		Topic:           occ.Title,
		Start:           start.On(date, g.loc),
		Timezone:        g.loc.String(),
		DurationMinutes: occ.DurationMinutes,
	})
	if !pr.IsSuccess() {
		return domain.Occurrence{}, fmt.Errorf("reschedule %s: %w", id, pr.AsError())
	}

	upd := domain.OccurrenceUpdate{Date: date, StartTime: start, UpdatedAt: now.UTC()}
	if err := g.store.UpdateOccurrence(ctx, id, upd); err != nil {
		g.logger.Error("reschedule accepted by provider but not recorded",
			zap.String("occurrence_id", id.String()),
			zap.String("remote_id", occ.RemoteID),
			zap.String("date", domain.FormatDate(date)),
			zap.Error(err),
		)
		return domain.Occurrence{}, fmt.Errorf("reschedule %s: %w: %w", id, domain.ErrPersistenceFailure, err)
	}

	g.logger.Info("occurrence rescheduled",
		zap.String("occurrence_id", id.String()),
		zap.String("from", domain.FormatDate(occ.Date)),
		zap.String("date", domain.FormatDate(date)),
	)
	occ.Date, occ.StartTime, occ.UpdatedAt = upd.Date, upd.StartTime, upd.UpdatedAt
	return occ, nil
}

// Delete removes the remote meeting and then the record. A meeting the
// provider no longer knows about counts as deleted; any other provider
// failure leaves the record in place.
func (g *Generator) Delete(ctx context.Context, id uuid.UUID) error {
	occ, err := g.store.GetOccurrence(ctx, id)
	if err != nil {
		return err
	}

	if occ.RemoteID != "" {
		pr := g.provider.Delete(ctx, occ.RemoteID)
		switch {
		case pr.IsSuccess():
		case pr.IsNotFound():
			g.logger.Info("remote meeting already gone", zap.String("remote_id", occ.RemoteID))
		default:
			return fmt.Errorf("delete %s: %w", id, pr.AsError())
		}
	}

	if err := g.store.DeleteOccurrence(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w: %w", id, domain.ErrPersistenceFailure, err)
	}
	g.logger.Info("occurrence deleted",
		zap.String("occurrence_id", id.String()),
		zap.String("series", string(occ.SeriesID)),
		zap.String("remote_id", occ.RemoteID),
	)
	return nil
}

func (g *Generator) Get(ctx context.Context, id uuid.UUID) (domain.Occurrence, error) {
	return g.store.GetOccurrence(ctx, id)
}

// Upcoming lists active occurrences from today on, earliest first.
func (g *Generator) Upcoming(ctx context.Context, limit int) ([]domain.Occurrence, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	return g.store.ListUpcoming(ctx, g.today(g.clock()), limit)
}
