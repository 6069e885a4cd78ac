package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/git"
)

// HealthStatus represents the outcome of a health check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration"`
	LastChecked time.Time     `json:"last_checked"`
}

// HealthReport is the combined result of all checks.
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []HealthCheck `json:"checks"`
}

// Failed returns the unhealthy checks.
func (r *HealthReport) Failed() []HealthCheck {
	var out []HealthCheck
	for _, c := range r.Checks {
		if c.Status == HealthStatusUnhealthy {
			out = append(out, c)
		}
	}
	return out
}

// HealthProbe runs the pre-tick health check.
type HealthProbe interface {
	Check(ctx context.Context) (*HealthReport, error)
}

// HealthChecker verifies the repository, git and every path the daemon
// writes. An unhealthy check is fatal. An unreachable remote only degrades
// the report when the failure is transient, since the executor retries those.
type HealthChecker struct {
	cfg   *config.Config
	repo  git.Repository
	clock clockwork.Clock
}

// NewHealthChecker returns a HealthChecker.
func NewHealthChecker(cfg *config.Config, repo git.Repository, clock clockwork.Clock) *HealthChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthChecker{cfg: cfg, repo: repo, clock: clock}
}

// Check runs every check and returns a fatal health error when any failed.
func (h *HealthChecker) Check(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{Status: HealthStatusHealthy, Timestamp: h.clock.Now()}

	add := func(name string, fn func() (HealthStatus, string)) {
		start := h.clock.Now()
		status, msg := fn()
		report.Checks = append(report.Checks, HealthCheck{
			Name:        name,
			Status:      status,
			Message:     msg,
			Duration:    h.clock.Since(start),
			LastChecked: start,
		})
		switch {
		case status == HealthStatusUnhealthy:
			report.Status = HealthStatusUnhealthy
		case status == HealthStatusDegraded && report.Status == HealthStatusHealthy:
			report.Status = HealthStatusDegraded
		}
	}

	add("repository_writable", func() (HealthStatus, string) {
		return fromErr(checkDirWritable(h.cfg.RepoPath), "repository directory is writable")
	})
	add("git", func() (HealthStatus, string) { return h.checkGit(ctx) })
	add("remote", func() (HealthStatus, string) { return h.checkRemote(ctx) })

	paths := map[string]string{
		"tracker_path": h.cfg.TrackerPath(),
		"target_path":  h.cfg.TargetPath(),
		"log_path":     h.cfg.LogPath(),
	}
	for _, name := range []string{"tracker_path", "target_path", "log_path"} {
		p := paths[name]
		if p == "" {
			continue
		}
		add(name, func() (HealthStatus, string) {
			return fromErr(checkFileWritable(p), p+" is writable")
		})
	}

	if failed := report.Failed(); len(failed) > 0 {
		msgs := make([]string, 0, len(failed))
		for _, c := range failed {
			msgs = append(msgs, c.Name+": "+c.Message)
		}
		return report, errors.HealthError("health check failed").
			WithCause(fmt.Errorf("%s", strings.Join(msgs, "; "))).
			WithContext("checks", len(failed)).
			Build()
	}
	return report, nil
}

// versioner is implemented by backends that shell out to a git binary.
type versioner interface {
	Version(ctx context.Context) (string, error)
}

func (h *HealthChecker) checkGit(ctx context.Context) (HealthStatus, string) {
	if err := h.repo.Ping(ctx); err != nil {
		return HealthStatusUnhealthy, err.Error()
	}
	v, ok := h.repo.(versioner)
	if !ok {
		return HealthStatusHealthy, "git responds"
	}
	out, err := v.Version(ctx)
	if err != nil {
		return HealthStatusUnhealthy, err.Error()
	}
	return HealthStatusHealthy, out
}

func (h *HealthChecker) checkRemote(ctx context.Context) (HealthStatus, string) {
	if !h.cfg.Push {
		return HealthStatusHealthy, "push disabled"
	}
	ok, err := h.repo.HasRemote(ctx)
	if err != nil {
		return HealthStatusUnhealthy, err.Error()
	}
	if !ok {
		return HealthStatusHealthy, "no remote configured"
	}
	if err := h.repo.CheckRemote(ctx); err != nil {
		if git.IsTransient(err) {
			return HealthStatusDegraded, err.Error()
		}
		return HealthStatusUnhealthy, err.Error()
	}
	return HealthStatusHealthy, "remote reachable"
}

func fromErr(err error, okMsg string) (HealthStatus, string) {
	if err != nil {
		return HealthStatusUnhealthy, err.Error()
	}
	return HealthStatusHealthy, okMsg
}

// checkDirWritable creates and removes a probe file in dir.
func checkDirWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".cadence-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// checkFileWritable opens an existing file for append, or checks that the
// nearest existing ancestor directory accepts new files.
func checkFileWritable(path string) error {
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return err
		}
		return f.Close()
	}
	dir := filepath.Dir(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			return checkDirWritable(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("no existing parent directory for %s", path)
		}
		dir = parent
	}
}
