package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

// Validate checks every constraint, reporting all violations in one
// configuration error. On success it resolves the time zone.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.RepoPath) == "" {
		add("repo_path is required")
	}
	if strings.TrimSpace(c.Branch) == "" {
		add("branch is required")
	}
	if backend, err := gitBackends.Parse(string(c.GitBackend)); err != nil {
		add("%v", err)
	} else {
		c.GitBackend = backend
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		add("timezone %q: %v", c.Timezone, err)
	}

	if c.MinCommits < 1 {
		add("min_commits must be >= 1, got %d", c.MinCommits)
	}
	if c.MaxCommits < c.MinCommits {
		add("max_commits (%d) must be >= min_commits (%d)", c.MaxCommits, c.MinCommits)
	}
	if c.DailyLimit < c.MinCommits || c.DailyLimit < c.MaxCommits {
		add("daily_limit (%d) must be >= min_commits (%d) and max_commits (%d)", c.DailyLimit, c.MinCommits, c.MaxCommits)
	}

	if c.ScheduleStart < 0 || c.ScheduleStart > 23 {
		add("schedule_start must be within [0,23], got %d", c.ScheduleStart)
	}
	if c.ScheduleEnd < 0 || c.ScheduleEnd > 23 {
		add("schedule_end must be within [0,23], got %d", c.ScheduleEnd)
	}
	if c.ScheduleStart >= c.ScheduleEnd {
		add("schedule_start (%d) must be before schedule_end (%d)", c.ScheduleStart, c.ScheduleEnd)
	}

	if c.CommitDelayMin < 0 {
		add("commit_delay_min must be >= 0, got %s", c.CommitDelayMin)
	}
	if c.CommitDelayMax < c.CommitDelayMin {
		add("commit_delay_max (%s) must be >= commit_delay_min (%s)", c.CommitDelayMax, c.CommitDelayMin)
	}

	if c.RetryAttempts < 1 {
		add("retry_attempts must be >= 1, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		add("retry_delay must be >= 0, got %s", c.RetryDelay)
	}
	if mode, err := retryBackoffs.Parse(string(c.RetryBackoff)); err != nil {
		add("%v", err)
	} else {
		c.RetryBackoff = mode
	}

	if c.ActiveInterval <= 0 || c.IdleInterval <= 0 {
		add("active_interval and idle_interval must be > 0")
	}

	if strings.TrimSpace(c.TargetFile) == "" {
		add("target_file is required")
	}
	if strings.TrimSpace(c.TrackerFile) == "" {
		add("tracker_file is required")
	}
	if strings.TrimSpace(c.LockFile) == "" {
		add("lock_file is required")
	}
	if _, err := logLevels.Parse(c.LogLevel); err != nil {
		add("%v", err)
	}

	if len(problems) > 0 {
		return errors.ConfigError("invalid configuration").
			WithCause(fmt.Errorf("%s", strings.Join(problems, "; "))).
			WithContext("problems", len(problems)).
			Build()
	}

	if abs, err := filepath.Abs(c.RepoPath); err == nil {
		c.RepoPath = abs
	}
	c.location = loc
	return nil
}
