package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Tick statuses in a TickSummary.
const (
	TickStatusRunning   = "running"
	TickStatusSkipped   = "skipped"
	TickStatusCompleted = "completed"
	TickStatusFailed    = "failed"
)

// TickSummary is the read model of one scheduler tick.
type TickSummary struct {
	TickID      string     `json:"tick_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Remaining   int        `json:"remaining"`
	Intended    int        `json:"intended"`
	Planned     int        `json:"planned"`
	Committed   int        `json:"committed"`
	Truncated   bool       `json:"truncated"`
	Commits     []string   `json:"commits,omitempty"`
	Failures    int        `json:"failures"`
	Error       string     `json:"error,omitempty"`
}

// TickHistoryProjection maintains an in-memory view of recent ticks,
// reconstructed from events stored in the event store.
type TickHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	ticks   map[string]*TickSummary
	maxSize int
}

// NewTickHistoryProjection creates a new projection backed by the given store.
func NewTickHistoryProjection(store Store, maxHistorySize int) *TickHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &TickHistoryProjection{
		store:   store,
		ticks:   make(map[string]*TickSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *TickHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(24*time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.ticks = make(map[string]*TickSummary)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	p.pruneLocked()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *TickHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
	p.pruneLocked()
}

func (p *TickHistoryProjection) applyEventLocked(event Event) {
	tickID := event.TickID()
	if tickID == "" {
		return
	}

	summary, exists := p.ticks[tickID]
	if !exists {
		summary = &TickSummary{
			TickID:    tickID,
			Status:    TickStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.ticks[tickID] = summary
	}

	switch event.Type() {
	case TypeTickStarted:
		var d TickStartedData
		if Decode(event, &d) == nil {
			summary.StartedAt = event.Timestamp()
			summary.Remaining = d.Remaining
		}

	case TypeTickSkipped:
		var d TickSkippedData
		if Decode(event, &d) == nil {
			summary.Status = TickStatusSkipped
			summary.Reason = d.Reason
			summary.Remaining = d.Remaining
			summary.complete(event.Timestamp())
		}

	case TypeCommitSucceeded:
		var d CommitSucceededData
		if Decode(event, &d) == nil {
			summary.Commits = append(summary.Commits, d.Hash)
		}

	case TypeCommitFailed:
		var d CommitFailedData
		if Decode(event, &d) == nil {
			summary.Failures++
			summary.Error = d.Error
		}

	case TypeTickCompleted:
		var d TickCompletedData
		if Decode(event, &d) == nil {
			summary.Intended = d.Intended
			summary.Planned = d.Planned
			summary.Committed = d.Committed
			summary.Truncated = d.Truncated
			summary.Status = TickStatusCompleted
			if d.Error != "" {
				summary.Status = TickStatusFailed
				summary.Error = d.Error
			}
			summary.complete(event.Timestamp())
		}
	}
}

func (s *TickSummary) complete(at time.Time) {
	t := at
	s.CompletedAt = &t
}

// pruneLocked keeps the newest maxSize ticks.
func (p *TickHistoryProjection) pruneLocked() {
	if len(p.ticks) <= p.maxSize {
		return
	}
	ordered := p.orderedLocked()
	for _, s := range ordered[p.maxSize:] {
		delete(p.ticks, s.TickID)
	}
}

func (p *TickHistoryProjection) orderedLocked() []*TickSummary {
	out := make([]*TickSummary, 0, len(p.ticks))
	for _, s := range p.ticks {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].TickID > out[j].TickID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// History returns up to limit tick summaries, newest first. limit <= 0 means all.
func (p *TickHistoryProjection) History(limit int) []TickSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ordered := p.orderedLocked()
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	out := make([]TickSummary, len(ordered))
	for i, s := range ordered {
		out[i] = *s
		out[i].Commits = append([]string(nil), s.Commits...)
	}
	return out
}

// Get returns the summary for tickID.
func (p *TickHistoryProjection) Get(tickID string) (TickSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.ticks[tickID]
	if !ok {
		return TickSummary{}, false
	}
	return *s, true
}
