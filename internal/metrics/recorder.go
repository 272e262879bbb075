package metrics

import "time"

// OutcomeLabel enumerates terminal publish outcomes for counters.
type OutcomeLabel string

const (
	OutcomePublished OutcomeLabel = "published"
	OutcomeSkipped   OutcomeLabel = "skipped"
	OutcomeFailed    OutcomeLabel = "failed"
	OutcomeCanceled  OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for the publish pipeline and sync queue.
type Recorder interface {
	IncPublishOutcome(outcome OutcomeLabel)
	ObservePublishDuration(d time.Duration)
	ObservePublishAttempts(n int)
	IncConflict()
	IncRetry(step, category string)
	IncFailure(category string)
	IncCoalesced()
	SetQueueDepth(n int)
	SetInFlight(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncPublishOutcome(OutcomeLabel)       {}
func (NoopRecorder) ObservePublishDuration(time.Duration) {}
func (NoopRecorder) ObservePublishAttempts(int)           {}
func (NoopRecorder) IncConflict()                         {}
func (NoopRecorder) IncRetry(string, string)              {}
func (NoopRecorder) IncFailure(string)                    {}
func (NoopRecorder) IncCoalesced()                        {}
func (NoopRecorder) SetQueueDepth(int)                    {}
func (NoopRecorder) SetInFlight(int)                      {}
