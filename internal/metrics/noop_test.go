package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	s := NewNoopSink()

	s.RunStarted(TriggerScheduled)
	s.RunCompleted(time.Second, 2, 1, errors.New("partial"))
	s.RunLockContended()
	s.SeriesOutcome("created")
	s.OccurrencesCompleted(3)

	s.ProviderCallCompleted(OperationCreate, StatusClass2xx, 200*time.Millisecond)
	s.CircuitRejected()

	s.TriggerFired(TriggerSeed)
	s.TriggerDrift(-5 * time.Millisecond)
}

var _ Sink = (*NoopSink)(nil)
