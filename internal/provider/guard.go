package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/djlord-it/easy-meetings/internal/circuitbreaker"
	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/metrics"
)

// Meetings is the provider surface wrapped by Guarded.
type Meetings interface {
	Create(ctx context.Context, req domain.MeetingRequest) domain.ProviderResult
	Update(ctx context.Context, remoteID string, req domain.MeetingRequest) domain.ProviderResult
	Delete(ctx context.Context, remoteID string) domain.ProviderResult
}

// MetricsSink records provider call metrics. Methods must not block.
type MetricsSink interface {
	ProviderCallCompleted(operation, statusClass string, duration time.Duration)
	CircuitRejected()
}

// Guarded short-circuits calls while the breaker for key is open and records
// per-call metrics.
type Guarded struct {
	next    Meetings
	breaker *circuitbreaker.CircuitBreaker
	key     string
	metrics MetricsSink // optional, nil = disabled
}

func NewGuarded(next Meetings, breaker *circuitbreaker.CircuitBreaker, key string) *Guarded {
	return &Guarded{next: next, breaker: breaker, key: key}
}

// WithMetrics attaches a metrics sink.
func (g *Guarded) WithMetrics(sink MetricsSink) *Guarded {
	g.metrics = sink
	return g
}

func (g *Guarded) Create(ctx context.Context, req domain.MeetingRequest) domain.ProviderResult {
	return g.call(metrics.OperationCreate, func() domain.ProviderResult { return g.next.Create(ctx, req) })
}

func (g *Guarded) Update(ctx context.Context, remoteID string, req domain.MeetingRequest) domain.ProviderResult {
	return g.call(metrics.OperationUpdate, func() domain.ProviderResult { return g.next.Update(ctx, remoteID, req) })
}

func (g *Guarded) Delete(ctx context.Context, remoteID string) domain.ProviderResult {
	return g.call(metrics.OperationDelete, func() domain.ProviderResult { return g.next.Delete(ctx, remoteID) })
}

func (g *Guarded) call(op string, fn func() domain.ProviderResult) domain.ProviderResult {
	if g.breaker != nil {
		if err := g.breaker.Allow(g.key); err != nil {
			if g.metrics != nil {
				g.metrics.CircuitRejected()
			}
			return domain.ProviderResult{Err: fmt.Errorf("%s %s: %w", op, g.key, err)}
		}
	}

	res := fn()

	if g.metrics != nil {
		g.metrics.ProviderCallCompleted(op, metrics.ClassifyStatus(res.StatusCode, res.Err), res.Duration)
	}
	if g.breaker != nil {
		switch {
		case errors.Is(res.Err, context.Canceled):
			g.breaker.RecordAbandoned(g.key)
		case tripsBreaker(res):
			g.breaker.RecordFailure(g.key)
		default:
			g.breaker.RecordSuccess(g.key)
		}
	}
	return res
}

// tripsBreaker reports whether a result indicates the provider itself is unhealthy.
// Ordinary client errors such as 404 or 400 do not count, and neither does
// a response that arrived but could not be decoded.
func tripsBreaker(res domain.ProviderResult) bool {
	if res.Err != nil {
		return !errors.Is(res.Err, ErrMalformedResponse)
	}
	return res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests
}
