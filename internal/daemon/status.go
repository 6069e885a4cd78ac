package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/eventstore"
	"git.home.luguber.info/inful/cadence/internal/git"
	"git.home.luguber.info/inful/cadence/internal/lock"
	"git.home.luguber.info/inful/cadence/internal/quota"
	"git.home.luguber.info/inful/cadence/internal/state"
)

// Status is a read-only snapshot of a cadence instance.
type Status struct {
	Now            time.Time                `json:"now"`
	Repository     string                   `json:"repository"`
	CommitCount    int                      `json:"commit_count"`
	LastRunDate    *time.Time               `json:"last_run_date,omitempty"`
	Remaining      int                      `json:"remaining"`
	DailyLimit     int                      `json:"daily_limit"`
	Eligible       bool                     `json:"eligible"`
	SkipReason     string                   `json:"skip_reason,omitempty"`
	UntilReset     time.Duration            `json:"until_reset"`
	TrackerError   string                   `json:"tracker_error,omitempty"`
	LockPID        int                      `json:"lock_pid,omitempty"`
	LockHeld       bool                     `json:"lock_held"`
	LockAlive      bool                     `json:"lock_alive"`
	History        []eventstore.TickSummary `json:"history,omitempty"`
	HistoryEnabled bool                     `json:"history_enabled"`
}

// ReadStatus gathers tracker, lock and history state without creating,
// repairing or locking anything.
func ReadStatus(ctx context.Context, cfg *config.Config, now time.Time, limit int, probe lock.LivenessProbe) (*Status, error) {
	loc := cfg.Location()
	st := &Status{
		Now:        now.In(loc),
		Repository: cfg.RepoPath,
		DailyLimit: cfg.DailyLimit,
		Remaining:  cfg.DailyLimit,
		UntilReset: quota.UntilReset(now, loc),
	}

	rec, err := state.ReadRecord(cfg.TrackerPath())
	switch {
	case err == nil:
		st.CommitCount = rec.CommitCount
		last := rec.LastRunDate.In(loc)
		st.LastRunDate = &last
		st.Remaining = rec.Remaining(cfg.DailyLimit, now, loc)
		if !state.SameDay(rec.LastRunDate, now, loc) {
			st.CommitCount = 0
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		st.TrackerError = err.Error()
	}

	policy := quota.Evaluate(quota.WindowFromConfig(cfg), st.Remaining, now)
	if reason, skip := policy.SkipReason(); skip {
		st.SkipReason = string(reason)
	} else {
		st.Eligible = true
	}

	if probe == nil {
		probe = lock.ProcessExists
	}
	pid, ok, err := lock.New(cfg.LockPath(), lock.WithProbe(probe)).Owner()
	if err != nil {
		return nil, fmt.Errorf("read lock: %w", err)
	}
	if ok {
		st.LockHeld = true
		st.LockPID = pid
		if alive, perr := probe(pid); perr == nil {
			st.LockAlive = alive
		}
	}

	if path := cfg.HistoryPath(); path != "" {
		if _, serr := os.Stat(path); serr == nil {
			st.HistoryEnabled = true
			store, err := eventstore.NewSQLiteStore(path)
			if err != nil {
				return nil, err
			}
			defer func() { _ = store.Close() }()
			projection := eventstore.NewTickHistoryProjection(store, max(limit, 1))
			if err := projection.Rebuild(ctx); err != nil {
				return nil, err
			}
			st.History = projection.History(limit)
		}
	}
	return st, nil
}

// CheckOnce opens the repository and runs the health check a single time.
func CheckOnce(ctx context.Context, cfg *config.Config, repo git.Repository) (*HealthReport, error) {
	if repo == nil {
		var err error
		if repo, err = git.Open(cfg); err != nil {
			return nil, err
		}
	}
	return NewHealthChecker(cfg, repo, nil).Check(ctx)
}
