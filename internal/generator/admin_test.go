package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

func seeded(t *testing.T) (*harness, domain.Occurrence) {
	t.Helper()
	h := newHarness(t, defaultSeries()[:1], at(t, 2024, time.June, 15, 10))
	report, err := h.gen.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Created())
	return h, *report.Results[0].Occurrence
}

func TestCreateSingle(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))

	occ, err := h.gen.CreateSingle(context.Background(), SingleRequest{
		Title:           "Topic Session (90min)",
		Date:            domain.Date(2024, time.June, 20),
		StartTime:       domain.TimeOfDay{Hour: 18, Minute: 30},
		DurationMinutes: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, SingleSeriesID, occ.SeriesID)
	assert.False(t, occ.Recurring)
	assert.Equal(t, "1001", occ.RemoteID)
	assert.Equal(t, 90, occ.DurationMinutes)

	req := h.provider.creates[0]
	assert.Equal(t, "Topic Session (90min)", req.Topic)
	assert.True(t, req.Start.Equal(time.Date(2024, 6, 20, 18, 30, 0, 0, h.loc)))

	stored, err := h.gen.Get(context.Background(), occ.ID)
	require.NoError(t, err)
	assert.Equal(t, occ, stored)
}

func TestCreateSingle_DoesNotBlockGeneration(t *testing.T) {
	h := newHarness(t, defaultSeries()[:1], at(t, 2024, time.June, 15, 10))
	ctx := context.Background()

	_, err := h.gen.CreateSingle(ctx, SingleRequest{
		SeriesID:        "topic",
		Title:           "Extra topic session",
		Date:            domain.Date(2024, time.July, 1),
		StartTime:       domain.TimeOfDay{Hour: 12},
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	// A one-off in the series' future is still an active occurrence.
	report, err := h.gen.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, report.Results[0].Outcome)
}

func TestCreateSingle_Invalid(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	valid := SingleRequest{
		Title:           "One-off",
		Date:            domain.Date(2024, time.June, 20),
		StartTime:       domain.TimeOfDay{Hour: 10},
		DurationMinutes: 30,
	}

	tests := []struct {
		name   string
		mutate func(*SingleRequest)
	}{
		{"missing title", func(r *SingleRequest) { r.Title = " " }},
		{"missing date", func(r *SingleRequest) { r.Date = time.Time{} }},
		{"past date", func(r *SingleRequest) { r.Date = domain.Date(2024, time.June, 14) }},
		{"zero duration", func(r *SingleRequest) { r.DurationMinutes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := h.gen.CreateSingle(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Zero(t, h.provider.createCount())
}

func TestCreateSingle_ProviderFailure(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	h.provider.failTopics = []string{"One-off"}

	_, err := h.gen.CreateSingle(context.Background(), SingleRequest{
		Title: "One-off", Date: domain.Date(2024, time.June, 20), DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Empty(t, h.store.All())
}

func TestReschedule(t *testing.T) {
	h, occ := seeded(t)
	ctx := context.Background()
	newDate := domain.Date(2024, time.July, 2)
	newStart := domain.TimeOfDay{Hour: 18}

	got, err := h.gen.Reschedule(ctx, occ.ID, newDate, newStart)
	require.NoError(t, err)
	assert.Equal(t, newDate, got.Date)
	assert.Equal(t, newStart, got.StartTime)

	req, ok := h.provider.updates[occ.RemoteID]
	require.True(t, ok, "provider must be updated")
	assert.True(t, req.Start.Equal(time.Date(2024, 7, 2, 18, 0, 0, 0, h.loc)))
	assert.Equal(t, occ.Title, req.Topic)

	stored, err := h.gen.Get(ctx, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, newDate, stored.Date)
	assert.Equal(t, newStart, stored.StartTime)
}

func TestReschedule_ProviderFailureKeepsRecord(t *testing.T) {
	h, occ := seeded(t)
	h.provider.updateCode = 500

	_, err := h.gen.Reschedule(context.Background(), occ.ID, domain.Date(2024, time.July, 2), occ.StartTime)
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	stored, err := h.gen.Get(context.Background(), occ.ID)
	require.NoError(t, err)
	assert.Equal(t, occ.Date, stored.Date)
}

func TestReschedule_RecordFailureLogged(t *testing.T) {
	h, occ := seeded(t)
	h.store.updateErr = errors.New("connection reset")

	_, err := h.gen.Reschedule(context.Background(), occ.ID, domain.Date(2024, time.July, 2), occ.StartTime)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)

	entries := h.logs.FilterMessage("reschedule accepted by provider but not recorded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, occ.RemoteID, entries[0].ContextMap()["remote_id"])
}

func TestReschedule_Rejected(t *testing.T) {
	h, occ := seeded(t)
	ctx := context.Background()

	_, err := h.gen.Reschedule(ctx, uuid.New(), domain.Date(2024, time.July, 2), occ.StartTime)
	assert.ErrorIs(t, err, domain.ErrOccurrenceNotFound)

	_, err = h.gen.Reschedule(ctx, occ.ID, domain.Date(2024, time.June, 1), occ.StartTime)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	h.clock.Set(at(t, 2024, time.July, 5, 6))
	_, err = h.gen.CompletePast(ctx)
	require.NoError(t, err)
	_, err = h.gen.Reschedule(ctx, occ.ID, domain.Date(2024, time.July, 20), occ.StartTime)
	assert.ErrorIs(t, err, ErrInvalidRequest, "completed occurrences cannot move")

	assert.Empty(t, h.provider.updates)
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name       string
		deleteCode int
		wantErr    error
		wantKept   bool
	}{
		{"deleted", 204, nil, false},
		{"already gone at provider", 404, nil, false},
		{"provider failure keeps record", 500, domain.ErrProviderFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, occ := seeded(t)
			h.provider.deleteCode = tt.deleteCode

			err := h.gen.Delete(context.Background(), occ.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, []string{occ.RemoteID}, h.provider.deletes)
			_, getErr := h.gen.Get(context.Background(), occ.ID)
			if tt.wantKept {
				assert.NoError(t, getErr)
			} else {
				assert.ErrorIs(t, getErr, domain.ErrOccurrenceNotFound)
			}
		})
	}
}

func TestDelete_NotFound(t *testing.T) {
	h, _ := seeded(t)
	err := h.gen.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrOccurrenceNotFound)
	assert.Empty(t, h.provider.deletes)
}

func TestDelete_RegeneratesNextRun(t *testing.T) {
	h, occ := seeded(t)
	ctx := context.Background()

	require.NoError(t, h.gen.Delete(ctx, occ.ID))
	report, err := h.gen.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created())
}

func TestUpcoming(t *testing.T) {
	h := newHarness(t, defaultSeries(), at(t, 2024, time.June, 15, 10))
	ctx := context.Background()
	_, err := h.gen.Generate(ctx)
	require.NoError(t, err)

	all, err := h.gen.Upcoming(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	two, err := h.gen.Upcoming(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, domain.SeriesID("topic"), two[0].SeriesID)
}
