// Package config loads, overrides and validates the cadence configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file, .env files,
// CADENCE_* environment variables, then command-line flags applied by the CLI.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

// GitBackend selects the version-control implementation.
type GitBackend string

const (
	GitBackendCLI   GitBackend = "cli"
	GitBackendGoGit GitBackend = "gogit"
)

// TimestampPlaceholder is replaced in CommitMessage with the local commit time.
const TimestampPlaceholder = "{{timestamp}}"

// Config is the single validated configuration value shared by every component.
type Config struct {
	RepoPath    string     `yaml:"repo_path"`
	Branch      string     `yaml:"branch"`
	Remote      string     `yaml:"remote"`
	Push        bool       `yaml:"push"`
	GitBackend  GitBackend `yaml:"git_backend"`
	AuthorName  string     `yaml:"author_name,omitempty"`
	AuthorEmail string     `yaml:"author_email,omitempty"`
	PushToken   string     `yaml:"push_token,omitempty"`

	Timezone       string   `yaml:"timezone"`
	MinCommits     int      `yaml:"min_commits"`
	MaxCommits     int      `yaml:"max_commits"`
	DailyLimit     int      `yaml:"daily_limit"`
	CommitDelayMin Duration `yaml:"commit_delay_min"`
	CommitDelayMax Duration `yaml:"commit_delay_max"`
	ScheduleStart  int      `yaml:"schedule_start"`
	ScheduleEnd    int      `yaml:"schedule_end"`
	Weekends       bool     `yaml:"weekends"`
	ActiveInterval Duration `yaml:"active_interval"`
	IdleInterval   Duration `yaml:"idle_interval"`

	TargetFile    string `yaml:"target_file"`
	CommitMessage string `yaml:"commit_message"`

	RetryAttempts int              `yaml:"retry_attempts"`
	RetryDelay    Duration         `yaml:"retry_delay"`
	RetryBackoff  RetryBackoffMode `yaml:"retry_backoff"`

	TrackerFile   string `yaml:"tracker_file"`
	LockFile      string `yaml:"lock_file"`
	LogFile       string `yaml:"log_file"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	HistoryDB     string `yaml:"history_db"`
	MetricsAddr   string `yaml:"metrics_addr,omitempty"`

	location *time.Location
}

// Load builds a Config from defaults, the optional YAML file at path, .env
// files and CADENCE_* variables. The result is not yet validated.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.ConfigError("failed to read config file").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, errors.ConfigError("failed to parse config file").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location returns the configured time zone. Valid only after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// ResolvePath resolves p against the repository path when relative.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoPath, p)
}

// TargetPath returns the absolute path of the tracked target file.
func (c *Config) TargetPath() string { return c.ResolvePath(c.TargetFile) }

// TrackerPath returns the absolute path of the persisted tracker record.
func (c *Config) TrackerPath() string { return c.ResolvePath(c.TrackerFile) }

// LockPath returns the absolute path of the instance lock marker.
func (c *Config) LockPath() string { return c.ResolvePath(c.LockFile) }

// LogPath returns the absolute path of the log sink, or "" when disabled.
func (c *Config) LogPath() string { return c.ResolvePath(c.LogFile) }

// HistoryPath returns the absolute path of the history database, or "" when disabled.
func (c *Config) HistoryPath() string { return c.ResolvePath(c.HistoryDB) }

// StateExcludes lists the cadence state files that live inside the
// repository as slash-separated, repository-relative patterns. Directories end
// in "/". The commit backends leave these paths unstaged so runtime state is
// never committed. Entries that would also cover the target file are omitted.
func (c *Config) StateExcludes() []string {
	target := c.relToRepo(c.TargetPath())
	var out []string
	seen := map[string]bool{}
	addPattern := func(p string) {
		if p == "" || seen[p] || p == target {
			return
		}
		if strings.HasSuffix(p, "/") && strings.HasPrefix(target, p) {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, p := range []string{c.TrackerPath(), c.LockPath(), c.LogPath(), c.HistoryPath()} {
		rel := c.relToRepo(p)
		if rel == "" {
			continue
		}
		if dir := path.Dir(rel); dir != "." {
			addPattern(dir + "/")
			continue
		}
		addPattern(rel)
		switch p {
		case c.TrackerPath():
			addPattern(rel + ".*.tmp")
		case c.LogPath():
			ext := path.Ext(rel)
			addPattern(strings.TrimSuffix(rel, ext) + "-*" + ext)
		case c.HistoryPath():
			addPattern(rel + "-*")
		}
	}
	return out
}

// relToRepo returns p relative to the repository with forward slashes, or ""
// when p is empty or outside the repository.
func (c *Config) relToRepo(p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(c.RepoPath, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Clone returns a shallow copy safe to hand to another goroutine.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// RestartRequired lists settings that differ between c and next and cannot be
// applied to a running daemon.
func (c *Config) RestartRequired(next *Config) []string {
	var fields []string
	check := func(name string, a, b any) {
		if a != b {
			fields = append(fields, name)
		}
	}
	check("repo_path", c.RepoPath, next.RepoPath)
	check("branch", c.Branch, next.Branch)
	check("remote", c.Remote, next.Remote)
	check("push", c.Push, next.Push)
	check("git_backend", c.GitBackend, next.GitBackend)
	check("timezone", c.Timezone, next.Timezone)
	check("target_file", c.TargetFile, next.TargetFile)
	check("tracker_file", c.TrackerFile, next.TrackerFile)
	check("lock_file", c.LockFile, next.LockFile)
	check("log_file", c.LogFile, next.LogFile)
	check("history_db", c.HistoryDB, next.HistoryDB)
	check("metrics_addr", c.MetricsAddr, next.MetricsAddr)
	check("retry_attempts", c.RetryAttempts, next.RetryAttempts)
	check("retry_delay", c.RetryDelay, next.RetryDelay)
	check("retry_backoff", c.RetryBackoff, next.RetryBackoff)
	check("commit_message", c.CommitMessage, next.CommitMessage)
	return fields
}

func (c *Config) String() string {
	return fmt.Sprintf("repo=%s branch=%s tz=%s burst=[%d,%d] limit=%d window=[%d,%d) weekends=%t",
		c.RepoPath, c.Branch, c.Timezone, c.MinCommits, c.MaxCommits, c.DailyLimit,
		c.ScheduleStart, c.ScheduleEnd, c.Weekends)
}
