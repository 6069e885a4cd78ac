package eventstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/cadence/internal/logfields"
)

// Journal appends scheduler events to a Store and feeds the projection.
// Failures are logged and swallowed; a nil *Journal records nothing.
type Journal struct {
	store      Store
	projection *TickHistoryProjection
	logger     *slog.Logger
}

// NewJournal returns a Journal over store.
func NewJournal(store Store, projection *TickHistoryProjection, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, projection: projection, logger: logger}
}

// Projection returns the attached projection, if any.
func (j *Journal) Projection() *TickHistoryProjection {
	if j == nil {
		return nil
	}
	return j.projection
}

// Record encodes data as an event of eventType and stores it.
func (j *Journal) Record(ctx context.Context, tickID, eventType string, at time.Time, data any) {
	if j == nil || j.store == nil {
		return
	}
	ev, err := NewEvent(tickID, eventType, at, data)
	if err != nil {
		j.logger.Warn("Failed to encode history event", logfields.TickID(tickID), logfields.Error(err))
		return
	}
	// History writes must land even when the tick context is being canceled.
	if err := j.store.Append(context.WithoutCancel(ctx), tickID, eventType, at, ev.EventPayload, nil); err != nil {
		j.logger.Warn("Failed to append history event", logfields.TickID(tickID), logfields.Error(err))
		return
	}
	if j.projection != nil {
		j.projection.Apply(ev)
	}
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	if j == nil || j.store == nil {
		return nil
	}
	return j.store.Close()
}
