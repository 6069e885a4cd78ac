// Package lock guarantees that at most one live cadence process works on a
// repository at a time.
//
// The lock is advisory: a marker file holds the decimal PID of its owner and
// liveness is decided by probing that PID. Markers left by dead processes
// are stale and are removed before a new owner proceeds.
package lock

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/logfields"
)

// LivenessProbe reports whether the process with the given PID is alive.
type LivenessProbe func(pid int) (bool, error)

// ProcessExists probes the process table without interacting with the process.
func ProcessExists(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	return process.PidExists(int32(pid)) //nolint:gosec // pid fits in int32 on supported platforms
}

// Manager owns the instance lock marker.
type Manager struct {
	path   string
	pid    int
	alive  LivenessProbe
	logger *slog.Logger

	mu    sync.Mutex
	owned bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithProbe replaces the liveness probe.
func WithProbe(p LivenessProbe) Option { return func(m *Manager) { m.alive = p } }

// WithPID overrides the PID written to the marker.
func WithPID(pid int) Option { return func(m *Manager) { m.pid = pid } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// New returns a Manager for the marker at path.
func New(path string, opts ...Option) *Manager {
	m := &Manager{
		path:   path,
		pid:    os.Getpid(),
		alive:  ProcessExists,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Path returns the marker location.
func (m *Manager) Path() string { return m.path }

// Owner reads the marker. ok is false when no marker exists.
func (m *Manager) Owner() (pid int, ok bool, err error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.LockError("failed to read lock file").
			WithCause(err).
			WithContext("path", m.path).
			Build()
	}
	pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
	if perr != nil {
		return 0, true, nil
	}
	return pid, true, nil
}

// Check verifies that no live process owns the marker. A live owner yields an
// instance conflict and nothing is written. A stale marker is removed.
func (m *Manager) Check() error {
	pid, ok, err := m.Owner()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if pid > 0 && pid != m.pid {
		alive, perr := m.alive(pid)
		if perr != nil {
			return errors.LockError("failed to probe lock owner").
				WithCause(perr).
				WithContext("pid", pid).
				Build()
		}
		if alive {
			return errors.InstanceConflict(fmt.Sprintf("another instance is running (pid %d)", pid)).
				WithContext("pid", pid).
				WithContext("path", m.path).
				Build()
		}
	}

	m.logger.Warn("Removing stale lock file", logfields.Path(m.path), logfields.PID(pid))
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return errors.LockError("failed to remove stale lock file").
			WithCause(err).
			WithContext("path", m.path).
			Build()
	}
	return nil
}

// Create writes the marker exclusively. Any failure is fatal to the caller.
func (m *Manager) Create() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return errors.LockError("failed to create lock directory").WithCause(err).Build()
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errors.InstanceConflict("lock file appeared while acquiring").
				WithContext("path", m.path).
				Build()
		}
		return errors.LockError("failed to create lock file").
			WithCause(err).
			WithContext("path", m.path).
			Build()
	}
	_, werr := f.WriteString(strconv.Itoa(m.pid))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(m.path)
		return errors.LockError("failed to write lock file").
			WithCause(werr).
			WithContext("path", m.path).
			Build()
	}
	m.owned = true
	m.logger.Debug("Acquired instance lock", logfields.Path(m.path), logfields.PID(m.pid))
	return nil
}

// Acquire runs Check then Create.
func (m *Manager) Acquire() error {
	if err := m.Check(); err != nil {
		return err
	}
	return m.Create()
}

// Release removes the marker when it still names this process. It is safe to
// call repeatedly and from concurrent shutdown paths; failures are logged.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.owned {
		return
	}
	m.owned = false

	pid, ok, err := m.Owner()
	if err != nil {
		m.logger.Warn("Failed to inspect lock file on release", logfields.Error(err))
		return
	}
	if !ok {
		return
	}
	if pid != m.pid {
		m.logger.Warn("Lock file owned by another process, leaving it",
			logfields.Path(m.path), logfields.PID(pid))
		return
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("Failed to remove lock file", logfields.Path(m.path), logfields.Error(err))
		return
	}
	m.logger.Debug("Released instance lock", logfields.Path(m.path))
}

// Held reports whether this Manager currently owns the marker.
func (m *Manager) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owned
}
