package config

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

const exampleConfig = `# cadence configuration
# Every key can also be set through a CADENCE_<UPPER_KEY> environment variable.

repo_path: .
branch: main
remote: origin
push: true
git_backend: cli        # cli | gogit
# author_name: Jane Doe
# author_email: jane@example.com
# push_token: ${GIT_TOKEN}

timezone: UTC
min_commits: 1
max_commits: 3
daily_limit: 10
commit_delay_min: 30s
commit_delay_max: 5m
schedule_start: 9       # first hour (inclusive) commits may run
schedule_end: 17        # hour (exclusive) commits stop
weekends: false
active_interval: 1h
idle_interval: 5m

target_file: activity.log
commit_message: "Update at {{timestamp}}"

retry_attempts: 3
retry_delay: 5s
retry_backoff: fixed

tracker_file: .cadence/tracker.json
lock_file: .cadence/cadence.lock
log_file: .cadence/cadence.log
log_level: info
log_max_size_mb: 10
log_max_backups: 3
history_db: .cadence/history.db
# metrics_addr: 127.0.0.1:9464
`

// Init writes an example configuration file to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.FileSystemError("failed to create config directory").WithCause(err).Build()
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return errors.FileSystemError("failed to write configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
