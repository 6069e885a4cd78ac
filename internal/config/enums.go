package config

import (
	"log/slog"

	"git.home.luguber.info/inful/cadence/internal/foundation/normalization"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var (
	retryBackoffs = normalization.NewNormalizer("retry_backoff", map[string]RetryBackoffMode{
		"fixed":       RetryBackoffFixed,
		"linear":      RetryBackoffLinear,
		"exponential": RetryBackoffExponential,
	}, RetryBackoffFixed)

	gitBackends = normalization.NewNormalizer("git_backend", map[string]GitBackend{
		"cli":    GitBackendCLI,
		"gogit":  GitBackendGoGit,
		"go-git": GitBackendGoGit,
	}, GitBackendCLI)

	logLevels = normalization.NewNormalizer("log_level", map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}, slog.LevelInfo)
)

// ParseLogLevel converts a configured level name, defaulting to info.
func ParseLogLevel(raw string) slog.Level {
	return logLevels.Normalize(raw)
}
