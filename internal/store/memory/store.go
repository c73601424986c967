// Package memory is an in-process occurrence store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

// Store keeps occurrences in a map. It enforces the same uniqueness rule as
// the Postgres store: one non-cancelled recurring occurrence per series and date.
type Store struct {
	mu          sync.RWMutex
	occurrences map[uuid.UUID]domain.Occurrence
}

func New() *Store {
	return &Store{occurrences: make(map[uuid.UUID]domain.Occurrence)}
}

func (s *Store) FindFutureOccurrence(ctx context.Context, seriesID domain.SeriesID, from time.Time, exclude []domain.OccurrenceStatus) (mo.Option[domain.Occurrence], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  domain.Occurrence
		found bool
	)
	for _, occ := range s.occurrences {
		if occ.SeriesID != seriesID || occ.Date.Before(from) || slices.Contains(exclude, occ.Status) {
			continue
		}
		if !found || occ.Date.Before(best.Date) {
			best, found = occ, true
		}
	}
	if !found {
		return mo.None[domain.Occurrence](), nil
	}
	return mo.Some(best), nil
}

func (s *Store) CreateOccurrence(ctx context.Context, occ domain.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.occurrences[occ.ID]; ok {
		return domain.ErrDuplicateOccurrence
	}
	if occ.Recurring {
		for _, existing := range s.occurrences {
			if conflicts(existing, occ.SeriesID, occ.Date) {
				return domain.ErrDuplicateOccurrence
			}
		}
	}
	s.occurrences[occ.ID] = occ
	return nil
}

func (s *Store) GetOccurrence(ctx context.Context, id uuid.UUID) (domain.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	occ, ok := s.occurrences[id]
	if !ok {
		return domain.Occurrence{}, domain.ErrOccurrenceNotFound
	}
	return occ, nil
}

func (s *Store) UpdateOccurrence(ctx context.Context, id uuid.UUID, upd domain.OccurrenceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	occ, ok := s.occurrences[id]
	if !ok {
		return domain.ErrOccurrenceNotFound
	}
	if occ.Recurring {
		for otherID, other := range s.occurrences {
			if otherID != id && conflicts(other, occ.SeriesID, upd.Date) {
				return domain.ErrDuplicateOccurrence
			}
		}
	}
	occ.Date, occ.StartTime, occ.UpdatedAt = upd.Date, upd.StartTime, upd.UpdatedAt
	s.occurrences[id] = occ
	return nil
}

func (s *Store) DeleteOccurrence(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.occurrences[id]; !ok {
		return domain.ErrOccurrenceNotFound
	}
	delete(s.occurrences, id)
	return nil
}

func (s *Store) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.Occurrence, error) {
	s.mu.RLock()
	var out []domain.Occurrence
	for _, occ := range s.occurrences {
		if occ.IsActive() && !occ.Date.Before(from) {
			out = append(out, occ)
		}
	}
	s.mu.RUnlock()

	sortOccurrences(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CompletePastOccurrences(ctx context.Context, before time.Time, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, occ := range s.occurrences {
		if occ.Status == domain.OccurrenceStatusScheduled && occ.Date.Before(before) {
			occ.Status = domain.OccurrenceStatusCompleted
			occ.UpdatedAt = now
			s.occurrences[id] = occ
			n++
		}
	}
	return n, nil
}

// All returns every stored occurrence ordered by date.
func (s *Store) All() []domain.Occurrence {
	s.mu.RLock()
	out := make([]domain.Occurrence, 0, len(s.occurrences))
	for _, occ := range s.occurrences {
		out = append(out, occ)
	}
	s.mu.RUnlock()

	sortOccurrences(out)
	return out
}

func conflicts(existing domain.Occurrence, seriesID domain.SeriesID, date time.Time) bool {
	return existing.Recurring &&
		existing.Status != domain.OccurrenceStatusCancelled &&
		existing.SeriesID == seriesID &&
		existing.Date.Equal(date)
}

func sortOccurrences(occs []domain.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime.String() < b.StartTime.String()
		}
		return a.SeriesID < b.SeriesID
	})
}
