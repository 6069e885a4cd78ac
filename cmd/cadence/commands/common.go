package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/logging"
)

// DefaultConfigFile is used when --config is not given and the file exists.
const DefaultConfigFile = "cadence.yaml"

// Global carries state shared by every command.
type Global struct {
	Out       io.Writer
	Logger    *slog.Logger
	logCloser io.Closer
}

// Close flushes and closes the log file sink, if one was opened.
func (g *Global) Close() error {
	if g.logCloser == nil {
		return nil
	}
	return g.logCloser.Close()
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags. Flags named after config keys override the
// configuration file and environment.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" type:"path" env:"CADENCE_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Repo       string `help:"Repository path (repo_path)" type:"path"`
	Branch     string `help:"Branch to commit to (branch)"`
	Timezone   string `help:"IANA time zone for schedule and quota (timezone)"`
	MinCommits *int   `name:"min-commits" help:"Minimum commits per burst (min_commits)"`
	MaxCommits *int   `name:"max-commits" help:"Maximum commits per burst (max_commits)"`
	DailyLimit *int   `name:"daily-limit" help:"Maximum commits per day (daily_limit)"`
	NoPush     bool   `name:"no-push" help:"Commit locally without pushing"`
	LogLevel   string `name:"log-level" help:"Log level: debug, info, warn, error (log_level)"`

	Run    RunCmd    `cmd:"" help:"Run the commit scheduler"`
	Status StatusCmd `cmd:"" help:"Show quota, lock and recent tick history"`
	Check  CheckCmd  `cmd:"" help:"Validate configuration and run the health check once"`
	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
}

// AfterApply installs a console logger until the configuration is known.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(logging.NewConsoleHandler(os.Stderr, level)))
	return nil
}

// ConfigFile returns the configuration file to load, or "" when none.
func (c *CLI) ConfigFile() string {
	if c.Config != "" {
		return c.Config
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// LoadConfig loads, overrides and validates the configuration.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile())
	if err != nil {
		return nil, err
	}
	c.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *CLI) applyFlags(cfg *config.Config) {
	if c.Repo != "" {
		cfg.RepoPath = c.Repo
	}
	if c.Branch != "" {
		cfg.Branch = c.Branch
	}
	if c.Timezone != "" {
		cfg.Timezone = c.Timezone
	}
	// Set flags are applied as given, zero included, so Validate sees them.
	if c.MinCommits != nil {
		cfg.MinCommits = *c.MinCommits
	}
	if c.MaxCommits != nil {
		cfg.MaxCommits = *c.MaxCommits
	}
	if c.DailyLimit != nil {
		cfg.DailyLimit = *c.DailyLimit
	}
	if c.NoPush {
		cfg.Push = false
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
}

// SetupLogging replaces the console logger with the configured fan-out of
// console and rotating file sinks.
func (g *Global) SetupLogging(cfg *config.Config, verbose bool) (*slog.Logger, error) {
	level := config.ParseLogLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger, closer, err := logging.Setup(logging.Options{
		Level:      level,
		FilePath:   cfg.LogPath(),
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return nil, errors.FileSystemError("failed to open log file").
			WithCause(err).
			WithContext("path", cfg.LogPath()).
			Build()
	}
	g.Logger = logger
	g.logCloser = closer
	slog.SetDefault(logger)
	return logger, nil
}
