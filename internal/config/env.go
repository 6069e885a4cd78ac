package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/foundation/normalization"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CADENCE_"

// loadEnvFiles loads .env and .env.local when present. Variables already set
// in the process environment are never overridden.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", "file", name, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", name)
	}
}

type lookupFunc func(key string) (string, bool)

// envBinding maps one CADENCE_* variable onto a Config field.
type envBinding struct {
	key string
	set func(c *Config, raw string) error
}

func str(f func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error { *f(c) = raw; return nil }
}

func integer(f func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("not an integer: %q", raw)
		}
		*f(c) = v
		return nil
	}
}

func boolean(f func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("not a boolean: %q", raw)
		}
		*f(c) = v
		return nil
	}
}

func duration(f func(c *Config) *Duration) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := parseDuration(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*f(c) = Duration(v)
		return nil
	}
}

func enum[T ~string](n *normalization.Normalizer[T], f func(c *Config) *T) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := n.Parse(raw)
		if err != nil {
			return err
		}
		*f(c) = v
		return nil
	}
}

var envBindings = []envBinding{
	{"REPO_PATH", str(func(c *Config) *string { return &c.RepoPath })},
	{"BRANCH", str(func(c *Config) *string { return &c.Branch })},
	{"REMOTE", str(func(c *Config) *string { return &c.Remote })},
	{"PUSH", boolean(func(c *Config) *bool { return &c.Push })},
	{"GIT_BACKEND", enum(gitBackends, func(c *Config) *GitBackend { return &c.GitBackend })},
	{"AUTHOR_NAME", str(func(c *Config) *string { return &c.AuthorName })},
	{"AUTHOR_EMAIL", str(func(c *Config) *string { return &c.AuthorEmail })},
	{"PUSH_TOKEN", str(func(c *Config) *string { return &c.PushToken })},
	{"TIMEZONE", str(func(c *Config) *string { return &c.Timezone })},
	{"MIN_COMMITS", integer(func(c *Config) *int { return &c.MinCommits })},
	{"MAX_COMMITS", integer(func(c *Config) *int { return &c.MaxCommits })},
	{"DAILY_LIMIT", integer(func(c *Config) *int { return &c.DailyLimit })},
	{"COMMIT_DELAY_MIN", duration(func(c *Config) *Duration { return &c.CommitDelayMin })},
	{"COMMIT_DELAY_MAX", duration(func(c *Config) *Duration { return &c.CommitDelayMax })},
	{"SCHEDULE_START", integer(func(c *Config) *int { return &c.ScheduleStart })},
	{"SCHEDULE_END", integer(func(c *Config) *int { return &c.ScheduleEnd })},
	{"WEEKENDS", boolean(func(c *Config) *bool { return &c.Weekends })},
	{"ACTIVE_INTERVAL", duration(func(c *Config) *Duration { return &c.ActiveInterval })},
	{"IDLE_INTERVAL", duration(func(c *Config) *Duration { return &c.IdleInterval })},
	{"TARGET_FILE", str(func(c *Config) *string { return &c.TargetFile })},
	{"COMMIT_MESSAGE", str(func(c *Config) *string { return &c.CommitMessage })},
	{"RETRY_ATTEMPTS", integer(func(c *Config) *int { return &c.RetryAttempts })},
	{"RETRY_DELAY", duration(func(c *Config) *Duration { return &c.RetryDelay })},
	{"RETRY_BACKOFF", enum(retryBackoffs, func(c *Config) *RetryBackoffMode { return &c.RetryBackoff })},
	{"TRACKER_FILE", str(func(c *Config) *string { return &c.TrackerFile })},
	{"LOCK_FILE", str(func(c *Config) *string { return &c.LockFile })},
	{"LOG_FILE", str(func(c *Config) *string { return &c.LogFile })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{"LOG_MAX_SIZE_MB", integer(func(c *Config) *int { return &c.LogMaxSizeMB })},
	{"LOG_MAX_BACKUPS", integer(func(c *Config) *int { return &c.LogMaxBackups })},
	{"HISTORY_DB", str(func(c *Config) *string { return &c.HistoryDB })},
	{"METRICS_ADDR", str(func(c *Config) *string { return &c.MetricsAddr })},
}

// applyEnv applies every set CADENCE_* variable. Parse failures are collected
// into a single configuration error.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var problems []string
	for _, b := range envBindings {
		raw, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.set(cfg, raw); err != nil {
			problems = append(problems, fmt.Sprintf("%s%s: %v", EnvPrefix, b.key, err))
		}
	}
	if len(problems) > 0 {
		return errors.ConfigError("invalid environment overrides: " + strings.Join(problems, "; ")).Build()
	}
	return nil
}
