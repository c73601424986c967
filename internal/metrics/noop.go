package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RunStarted(trigger string)                                             {}
func (n *NoopSink) RunCompleted(duration time.Duration, created, failed int, err error)   {}
func (n *NoopSink) RunLockContended()                                                     {}
func (n *NoopSink) SeriesOutcome(outcome string)                                          {}
func (n *NoopSink) OccurrencesCompleted(count int)                                        {}
func (n *NoopSink) ProviderCallCompleted(operation, statusClass string, d time.Duration) {}
func (n *NoopSink) CircuitRejected()                                                      {}
func (n *NoopSink) TriggerFired(trigger string)                                           {}
func (n *NoopSink) TriggerDrift(drift time.Duration)                                      {}
