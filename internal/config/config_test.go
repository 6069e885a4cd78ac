package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

func envMap(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.True(t, filepath.IsAbs(cfg.RepoPath))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	t.Setenv("CADENCE_TEST_BRANCH", "develop")
	require.NoError(t, os.WriteFile(path, []byte(`
repo_path: /srv/repo
branch: ${CADENCE_TEST_BRANCH}
timezone: Europe/Oslo
min_commits: 2
max_commits: 4
commit_delay_min: 10
commit_delay_max: 2m
weekends: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/repo", cfg.RepoPath)
	assert.Equal(t, "develop", cfg.Branch)
	assert.Equal(t, 2, cfg.MinCommits)
	assert.Equal(t, 4, cfg.MaxCommits)
	assert.Equal(t, 10*time.Second, cfg.CommitDelayMin.Std())
	assert.Equal(t, 2*time.Minute, cfg.CommitDelayMax.Std())
	assert.True(t, cfg.Weekends)
	// untouched keys keep defaults
	assert.Equal(t, 10, cfg.DailyLimit)
	assert.Equal(t, "origin", cfg.Remote)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Europe/Oslo", cfg.Location().String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_commits: [1, 2\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, envMap(map[string]string{
		"CADENCE_BRANCH":         "trunk",
		"CADENCE_PUSH":           "false",
		"CADENCE_DAILY_LIMIT":    "25",
		"CADENCE_RETRY_DELAY":    "750ms",
		"CADENCE_GIT_BACKEND":    "GoGit",
		"CADENCE_SCHEDULE_START": "7",
	}))
	require.NoError(t, err)
	assert.Equal(t, "trunk", cfg.Branch)
	assert.False(t, cfg.Push)
	assert.Equal(t, 25, cfg.DailyLimit)
	assert.Equal(t, 750*time.Millisecond, cfg.RetryDelay.Std())
	assert.Equal(t, GitBackendGoGit, cfg.GitBackend)
	assert.Equal(t, 7, cfg.ScheduleStart)
}

func TestApplyEnvCollectsErrors(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, envMap(map[string]string{
		"CADENCE_MIN_COMMITS":   "many",
		"CADENCE_WEEKENDS":      "sometimes",
		"CADENCE_RETRY_BACKOFF": "random",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CADENCE_MIN_COMMITS")
	assert.Contains(t, err.Error(), "CADENCE_WEEKENDS")
	assert.Contains(t, err.Error(), "CADENCE_RETRY_BACKOFF")
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"min below one":         func(c *Config) { c.MinCommits = 0 },
		"max below min":         func(c *Config) { c.MinCommits = 3; c.MaxCommits = 2 },
		"limit below max":       func(c *Config) { c.DailyLimit = 2 },
		"start out of range":    func(c *Config) { c.ScheduleStart = -1 },
		"end out of range":      func(c *Config) { c.ScheduleEnd = 24 },
		"start not before end":  func(c *Config) { c.ScheduleStart = 17 },
		"negative delay":        func(c *Config) { c.CommitDelayMin = Duration(-time.Second) },
		"delay max below min":   func(c *Config) { c.CommitDelayMax = Duration(time.Second) },
		"zero retry attempts":   func(c *Config) { c.RetryAttempts = 0 },
		"negative retry delay":  func(c *Config) { c.RetryDelay = Duration(-time.Second) },
		"unknown timezone":      func(c *Config) { c.Timezone = "Mars/Olympus" },
		"unknown backend":       func(c *Config) { c.GitBackend = "svn" },
		"unknown retry backoff": func(c *Config) { c.RetryBackoff = "random" },
		"unknown log level":     func(c *Config) { c.LogLevel = "loud" },
		"empty lock file":       func(c *Config) { c.LockFile = "" },
		"zero idle interval":    func(c *Config) { c.IdleInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.MinCommits = 0
	cfg.RetryAttempts = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_commits")
	assert.Contains(t, err.Error(), "retry_attempts")
}

func TestPathsResolveAgainstRepo(t *testing.T) {
	cfg := Default()
	cfg.RepoPath = "/srv/repo"
	assert.Equal(t, "/srv/repo/.cadence/tracker.json", cfg.TrackerPath())
	assert.Equal(t, "/srv/repo/activity.log", cfg.TargetPath())
	cfg.LockFile = "/run/cadence.lock"
	assert.Equal(t, "/run/cadence.lock", cfg.LockPath())
	cfg.HistoryDB = ""
	assert.Empty(t, cfg.HistoryPath())
}

func TestRestartRequired(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.MaxCommits = 5
	b.ScheduleEnd = 20
	assert.Empty(t, a.RestartRequired(b))

	b.Branch = "other"
	b.LockFile = "x.lock"
	assert.ElementsMatch(t, []string{"branch", "lock_file"}, a.RestartRequired(b))
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cadence.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	err = Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))
}

func TestDurationUnmarshal(t *testing.T) {
	d, err := parseDuration("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
	_, err = parseDuration("soon")
	require.Error(t, err)
}

func TestValidateNormalizesEnums(t *testing.T) {
	c := Default()
	c.RepoPath = t.TempDir()
	c.GitBackend = " Go-Git "
	c.RetryBackoff = "EXPONENTIAL"
	require.NoError(t, c.Validate())
	assert.Equal(t, GitBackendGoGit, c.GitBackend)
	assert.Equal(t, RetryBackoffExponential, c.RetryBackoff)

	c.RetryBackoff = ""
	require.NoError(t, c.Validate())
	assert.Equal(t, RetryBackoffFixed, c.RetryBackoff)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("chatty"))
}

func TestStateExcludes(t *testing.T) {
	c := Default()
	c.RepoPath = t.TempDir()
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{".cadence/"}, c.StateExcludes())

	c.TrackerFile = "tracker.json"
	c.LockFile = filepath.Join(os.TempDir(), "cadence.lock")
	c.LogFile = "cadence.log"
	c.HistoryDB = ""
	assert.Equal(t, []string{"tracker.json", "tracker.json.*.tmp", "cadence.log", "cadence-*.log"}, c.StateExcludes())

	c.TargetFile = "cadence.log"
	assert.NotContains(t, c.StateExcludes(), "cadence.log")
}
