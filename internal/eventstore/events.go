package eventstore

import (
	"encoding/json"
	"time"
)

// Event type names.
const (
	TypeTickStarted     = "tick.started"
	TypeTickSkipped     = "tick.skipped"
	TypeTickCompleted   = "tick.completed"
	TypeCommitSucceeded = "commit.succeeded"
	TypeCommitFailed    = "commit.failed"
)

// TickStartedData is the payload of a tick.started event.
type TickStartedData struct {
	Remaining int `json:"remaining"`
}

// TickSkippedData is the payload of a tick.skipped event.
type TickSkippedData struct {
	Reason    string `json:"reason"`
	Remaining int    `json:"remaining"`
}

// TickCompletedData is the payload of a tick.completed event.
type TickCompletedData struct {
	Intended  int    `json:"intended"`
	Planned   int    `json:"planned"`
	Committed int    `json:"committed"`
	Truncated bool   `json:"truncated"`
	Error     string `json:"error,omitempty"`
}

// CommitSucceededData is the payload of a commit.succeeded event.
type CommitSucceededData struct {
	Hash       string `json:"hash"`
	Attempts   int    `json:"attempts"`
	Pushed     bool   `json:"pushed"`
	DurationMS int64  `json:"duration_ms"`
}

// CommitFailedData is the payload of a commit.failed event.
type CommitFailedData struct {
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// NewEvent encodes data into an event of the given type.
func NewEvent(tickID, eventType string, at time.Time, data any) (*BaseEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, eventStoreError("failed to marshal "+eventType+" payload", err)
	}
	return &BaseEvent{
		EventTickID:    tickID,
		EventType:      eventType,
		EventTimestamp: at,
		EventPayload:   payload,
	}, nil
}

// Decode unmarshals an event payload into v.
func Decode(e Event, v any) error {
	if err := json.Unmarshal(e.Payload(), v); err != nil {
		return eventStoreError("failed to unmarshal "+e.Type()+" payload", err)
	}
	return nil
}
