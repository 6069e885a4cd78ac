package metrics

import "time"

// TickOutcome labels how a tick ended.
type TickOutcome string

const (
	TickCommitted TickOutcome = "committed"
	TickTruncated TickOutcome = "truncated"
	TickSkipped   TickOutcome = "skipped"
	TickFailed    TickOutcome = "failed"
	TickCanceled  TickOutcome = "canceled"
)

// ResultLabel enumerates commit result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for ticks and commits.
type Recorder interface {
	IncTick(outcome TickOutcome, reason string)
	IncCommit(result ResultLabel)
	IncCommitRetry()
	ObserveCommitDuration(d time.Duration)
	SetQuotaRemaining(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncTick(TickOutcome, string)         {}
func (NoopRecorder) IncCommit(ResultLabel)               {}
func (NoopRecorder) IncCommitRetry()                     {}
func (NoopRecorder) ObserveCommitDuration(time.Duration) {}
func (NoopRecorder) SetQuotaRemaining(int)               {}
