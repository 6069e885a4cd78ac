// Package eventstore records scheduler activity as an append-only event log
// and projects it into a tick history for the status command.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, tickID, eventType string, at time.Time, payload []byte, metadata map[string]string) error

	// GetByTickID retrieves all events for a specific tick.
	GetByTickID(ctx context.Context, tickID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
