package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/logfields"
)

// Record is the persisted tracker state. Unknown fields are ignored on read.
type Record struct {
	CommitCount int       `json:"commitCount"`
	LastRunDate time.Time `json:"lastRunDate"`
}

// Tracker counts commits made on the current calendar day in a fixed time zone.
// It is safe for concurrent use; the scheduler and the shutdown path may both
// call Save.
type Tracker struct {
	mu     sync.Mutex
	path   string
	loc    *time.Location
	logger *slog.Logger
	rec    Record
}

// NewTracker returns a Tracker persisting to path. Call Load before use.
func NewTracker(path string, loc *time.Location, logger *slog.Logger) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{path: path, loc: loc, logger: logger}
}

// Path returns the location of the persisted record.
func (t *Tracker) Path() string { return t.path }

// Load reads the persisted record. A missing file is created with a zero
// record. A corrupt file is logged, discarded and replaced; it never fails
// the caller. Only a failure to write the fresh record is returned.
func (t *Tracker) Load(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	switch {
	case err == nil:
		var rec Record
		if jerr := json.Unmarshal(data, &rec); jerr != nil || rec.CommitCount < 0 {
			if jerr == nil {
				jerr = fmt.Errorf("negative commitCount %d", rec.CommitCount)
			}
			t.logger.Warn("Tracker record is corrupt, reinitializing",
				logfields.Path(t.path), logfields.Error(jerr))
			t.rec = Record{LastRunDate: now.In(t.loc)}
			return t.persistLocked()
		}
		t.rec = rec
		return nil
	case os.IsNotExist(err):
		t.rec = Record{LastRunDate: now.In(t.loc)}
		return t.persistLocked()
	default:
		t.logger.Warn("Tracker record unreadable, starting empty",
			logfields.Path(t.path), logfields.Error(err))
		t.rec = Record{LastRunDate: now.In(t.loc)}
		return t.persistLocked()
	}
}

// RemainingToday returns max(0, limit-count) for the day containing now. A
// day change resets the counter; the reset is persisted best-effort.
func (t *Tracker) RemainingToday(limit int, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rolloverLocked(now) {
		if err := t.persistLocked(); err != nil {
			t.logger.Warn("Failed to persist tracker rollover", logfields.Error(err))
		}
	}
	return max(0, limit-t.rec.CommitCount)
}

// RecordCommit counts one successful commit made at now and persists the
// record. On a write failure the in-memory increment stands and a
// persistence error is returned.
func (t *Tracker) RecordCommit(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rolloverLocked(now)
	t.rec.CommitCount++
	t.rec.LastRunDate = now.In(t.loc)
	return t.persistLocked()
}

// Save writes the current in-memory record.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persistLocked()
}

// Snapshot returns a copy of the in-memory record.
func (t *Tracker) Snapshot() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func (t *Tracker) rolloverLocked(now time.Time) bool {
	if SameDay(t.rec.LastRunDate, now, t.loc) {
		return false
	}
	if t.rec.CommitCount > 0 {
		t.logger.Info("New day, resetting commit count",
			slog.Int("previous", t.rec.CommitCount))
	}
	t.rec = Record{LastRunDate: now.In(t.loc)}
	return true
}

func (t *Tracker) persistLocked() error {
	data, err := json.MarshalIndent(t.rec, "", "  ")
	if err != nil {
		return errors.PersistenceError("failed to encode tracker record").WithCause(err).Build()
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.PersistenceError("failed to create tracker directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return errors.PersistenceError("failed to create temporary tracker file").
			WithCause(err).
			WithContext("path", t.path).
			Build()
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(append(data, '\n'))
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return errors.PersistenceError("failed to write tracker record").
			WithCause(werr).
			WithContext("path", t.path).
			Build()
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.PersistenceError("failed to replace tracker record").
			WithCause(err).
			WithContext("path", t.path).
			Build()
	}
	return nil
}

// ReadRecord reads the record at path without repairing or creating it.
func ReadRecord(path string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode tracker record: %w", err)
	}
	return rec, nil
}

// Remaining returns the quota left on the day containing now for rec.
func (r Record) Remaining(limit int, now time.Time, loc *time.Location) int {
	if !SameDay(r.LastRunDate, now, loc) {
		return limit
	}
	return max(0, limit-r.CommitCount)
}
