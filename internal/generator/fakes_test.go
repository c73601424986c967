package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/holiday"
	"github.com/djlord-it/easy-meetings/internal/planner"
	"github.com/djlord-it/easy-meetings/internal/recurrence"
	"github.com/djlord-it/easy-meetings/internal/store/memory"
	"github.com/djlord-it/easy-meetings/internal/testutil"
)

// fakeProvider hosts meetings in memory. Topics containing a failTopics entry
// get a 500.
type fakeProvider struct {
	mu         sync.Mutex
	next       int
	creates    []domain.MeetingRequest
	updates    map[string]domain.MeetingRequest
	deletes    []string
	failTopics []string
	updateCode int
	deleteCode int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{next: 1000, updates: make(map[string]domain.MeetingRequest)}
}

func (p *fakeProvider) Create(_ context.Context, req domain.MeetingRequest) domain.ProviderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates = append(p.creates, req)
	for _, f := range p.failTopics {
		if strings.Contains(req.Topic, f) {
			return domain.ProviderResult{StatusCode: 500, Message: "internal error"}
		}
	}
	p.next++
	id := fmt.Sprint(p.next)
	return domain.ProviderResult{
		StatusCode: 201,
		Meeting:    domain.RemoteMeeting{ID: id, JoinURL: "https://zoom.us/j/" + id},
	}
}

func (p *fakeProvider) Update(_ context.Context, remoteID string, req domain.MeetingRequest) domain.ProviderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates[remoteID] = req
	code := p.updateCode
	if code == 0 {
		code = 204
	}
	return domain.ProviderResult{StatusCode: code, Meeting: domain.RemoteMeeting{ID: remoteID}}
}

func (p *fakeProvider) Delete(_ context.Context, remoteID string) domain.ProviderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, remoteID)
	code := p.deleteCode
	if code == 0 {
		code = 204
	}
	return domain.ProviderResult{StatusCode: code, Meeting: domain.RemoteMeeting{ID: remoteID}}
}

func (p *fakeProvider) createCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creates)
}

// faultyStore wraps the memory store with injectable failures.
type faultyStore struct {
	*memory.Store
	findErr   error
	createErr error
	updateErr error
	// blind makes every check miss, as if a concurrent run had not yet persisted.
	blind bool
}

func (s *faultyStore) FindFutureOccurrence(ctx context.Context, id domain.SeriesID, from time.Time, exclude []domain.OccurrenceStatus) (mo.Option[domain.Occurrence], error) {
	if s.findErr != nil {
		return mo.None[domain.Occurrence](), s.findErr
	}
	if s.blind {
		return mo.None[domain.Occurrence](), nil
	}
	return s.Store.FindFutureOccurrence(ctx, id, from, exclude)
}

func (s *faultyStore) CreateOccurrence(ctx context.Context, occ domain.Occurrence) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.CreateOccurrence(ctx, occ)
}

func (s *faultyStore) UpdateOccurrence(ctx context.Context, id uuid.UUID, upd domain.OccurrenceUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.Store.UpdateOccurrence(ctx, id, upd)
}

type fakeLock struct {
	acquired bool
	err      error
	tries    int
	released int
}

func (l *fakeLock) TryLock(context.Context) (func(), bool, error) {
	l.tries++
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() { l.released++ }, true, nil
}

type countingSink struct {
	started   []string
	outcomes  map[string]int
	completed int
	contended int
	runs      int
}

func newCountingSink() *countingSink { return &countingSink{outcomes: make(map[string]int)} }

func (s *countingSink) RunStarted(trigger string)                   { s.started = append(s.started, trigger) }
func (s *countingSink) RunCompleted(time.Duration, int, int, error) { s.runs++ }
func (s *countingSink) RunLockContended()                           { s.contended++ }
func (s *countingSink) SeriesOutcome(outcome string)                { s.outcomes[outcome]++ }
func (s *countingSink) OccurrencesCompleted(n int)                  { s.completed += n }

var errSeriesSource = errors.New("series file unreadable")

type brokenSource struct{}

func (brokenSource) Series(context.Context) ([]domain.MeetingSeries, error) {
	return nil, errSeriesSource
}

// partialSource returns usable series together with entries that failed to load.
type partialSource struct {
	series  []domain.MeetingSeries
	invalid domain.InvalidSeriesErrors
}

func (p partialSource) Series(context.Context) ([]domain.MeetingSeries, error) {
	if len(p.invalid) == 0 {
		return p.series, nil
	}
	return p.series, p.invalid
}

func series(id, name, rule string) domain.MeetingSeries {
	return domain.MeetingSeries{
		ID:              domain.SeriesID(id),
		Name:            name,
		Rule:            recurrence.MustParseRule(rule),
		StartTime:       domain.TimeOfDay{Hour: 19},
		DurationMinutes: 60,
	}
}

func defaultSeries() StaticSeries {
	return StaticSeries{
		series("topic", "Monthly Topic with Rhonda", "first monday"),
		series("getitdone", "Get-it-Done! Session", "second monday"),
		series("qa", "Q&A: Ask Us Anything", "third monday"),
	}
}

type harness struct {
	gen      *Generator
	store    *faultyStore
	provider *fakeProvider
	logs     *observer.ObservedLogs
	clock    *testutil.FakeClock
	loc      *time.Location
}

// newHarness builds a generator whose clock reads now in New York.
func newHarness(t *testing.T, src SeriesSource, now time.Time) *harness {
	t.Helper()
	loc := testutil.NewYork(t)
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		store:    &faultyStore{Store: memory.New()},
		provider: newFakeProvider(),
		logs:     logs,
		clock:    testutil.NewFakeClock(now),
		loc:      loc,
	}
	h.gen = New(h.store, h.provider, planner.New(holiday.New()), src, loc, zap.New(core)).
		WithClock(h.clock.Now)
	return h
}
