package daemon

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/logfields"
)

// TrackerSaver persists the in-memory commit count.
type TrackerSaver interface {
	Save() error
}

// LockReleaser gives up the instance lock.
type LockReleaser interface {
	Release()
}

type namedCloser struct {
	name string
	fn   func() error
}

// Coordinator owns process teardown. Teardown runs at most once no matter how
// many paths reach it: normal return, fatal error or a repeated signal.
type Coordinator struct {
	once    sync.Once
	mu      sync.Mutex
	closers []namedCloser
	tracker TrackerSaver
	lock    LockReleaser
	logger  *slog.Logger
	exit    func(int)
	done    chan struct{}
}

// NewCoordinator returns a Coordinator for tracker and lock. Either may be nil.
func NewCoordinator(tracker TrackerSaver, lock LockReleaser, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		tracker: tracker,
		lock:    lock,
		logger:  logger,
		exit:    os.Exit,
		done:    make(chan struct{}),
	}
}

// WithExit replaces os.Exit, for tests.
func (c *Coordinator) WithExit(fn func(int)) *Coordinator {
	c.exit = fn
	return c
}

// OnTeardown registers a resource to close during teardown. Closers run in
// reverse registration order before the tracker is saved.
func (c *Coordinator) OnTeardown(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, namedCloser{name: name, fn: fn})
}

// Done is closed once teardown has finished.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Teardown closes registered resources, persists the tracker and releases the
// lock. Only the first call does anything; it reports whether it ran.
func (c *Coordinator) Teardown() bool {
	ran := false
	c.once.Do(func() {
		ran = true
		defer close(c.done)

		c.mu.Lock()
		closers := append([]namedCloser(nil), c.closers...)
		c.mu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(); err != nil {
				c.logger.Warn("Failed to close resource", slog.String("resource", closers[i].name), logfields.Error(err))
			}
		}

		if c.tracker != nil {
			// Racing a scheduler-driven save is fine: both write the same
			// in-memory record and the last rename wins.
			if err := c.tracker.Save(); err != nil {
				c.logger.Error("Failed to persist tracker on shutdown", logfields.Error(err))
			}
		}
		if c.lock != nil {
			c.lock.Release()
		}
		c.logger.Info("Shutdown complete")
	})
	return ran
}

// Watch turns signals into cancellation. The first signal cancels the run
// context so the scheduler can drain; a second one tears down immediately and
// exits with success. Watch returns when teardown finished or stop is closed.
func (c *Coordinator) Watch(signals <-chan os.Signal, cancel context.CancelFunc, stop <-chan struct{}) {
	received := 0
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case sig := <-signals:
			received++
			if received == 1 {
				c.logger.Info("Shutdown signal received, finishing in-flight work", logfields.Signal(sig.String()))
				cancel()
				continue
			}
			c.logger.Warn("Second signal received, forcing shutdown", logfields.Signal(sig.String()))
			c.Teardown()
			c.exit(errors.ExitOK)
			return
		}
	}
}
