package config

import "time"

// Default cadence paths, relative to the repository.
const (
	DefaultStateDir    = ".cadence"
	DefaultTrackerFile = DefaultStateDir + "/tracker.json"
	DefaultLockFile    = DefaultStateDir + "/cadence.lock"
	DefaultLogFile     = DefaultStateDir + "/cadence.log"
	DefaultHistoryDB   = DefaultStateDir + "/history.db"
	DefaultTargetFile  = "activity.log"
)

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		RepoPath:       ".",
		Branch:         "main",
		Remote:         "origin",
		Push:           true,
		GitBackend:     GitBackendCLI,
		Timezone:       "UTC",
		MinCommits:     1,
		MaxCommits:     3,
		DailyLimit:     10,
		CommitDelayMin: Duration(30 * time.Second),
		CommitDelayMax: Duration(5 * time.Minute),
		ScheduleStart:  9,
		ScheduleEnd:    17,
		ActiveInterval: Duration(time.Hour),
		IdleInterval:   Duration(5 * time.Minute),
		TargetFile:     DefaultTargetFile,
		CommitMessage:  "Update at " + TimestampPlaceholder,
		RetryAttempts:  3,
		RetryDelay:     Duration(5 * time.Second),
		RetryBackoff:   RetryBackoffFixed,
		TrackerFile:    DefaultTrackerFile,
		LockFile:       DefaultLockFile,
		LogFile:        DefaultLogFile,
		LogLevel:       "info",
		LogMaxSizeMB:   10,
		LogMaxBackups:  3,
		HistoryDB:      DefaultHistoryDB,
	}
}
