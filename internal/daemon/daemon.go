// Package daemon assembles the commit scheduler: instance lock, tracker,
// health checks, executor, history, metrics, config reload and shutdown.
package daemon

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/cadence/internal/commit"
	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/eventstore"
	"git.home.luguber.info/inful/cadence/internal/git"
	"git.home.luguber.info/inful/cadence/internal/lock"
	"git.home.luguber.info/inful/cadence/internal/logfields"
	"git.home.luguber.info/inful/cadence/internal/metrics"
	"git.home.luguber.info/inful/cadence/internal/quota"
	"git.home.luguber.info/inful/cadence/internal/retry"
	"git.home.luguber.info/inful/cadence/internal/state"
)

// historySize bounds the in-memory tick history projection.
const historySize = 200

// Options carries the collaborators New would otherwise build itself.
type Options struct {
	ConfigPath string // watched for reloads when set
	Logger     *slog.Logger
	Clock      clockwork.Clock
	Repository git.Repository
	Probe      lock.LivenessProbe
	Rand       quota.Rand
	Sleeper    retry.Sleeper
	Signals    <-chan os.Signal // defaults to SIGINT and SIGTERM
	Exit       func(int)
}

// Daemon is a running cadence instance. It holds the instance lock from New
// until teardown.
type Daemon struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
	clock  clockwork.Clock

	lock        *lock.Manager
	tracker     *state.Tracker
	repo        git.Repository
	journal     *eventstore.Journal
	metricsSrv  *metrics.Server
	health      *HealthChecker
	executor    *commit.Executor
	scheduler   *Scheduler
	coordinator *Coordinator
	workers     WorkerGroup
}

// New acquires the instance lock, loads the tracker and wires every
// component. On error nothing is left held.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	d := &Daemon{cfg: cfg, opts: opts, logger: opts.Logger, clock: opts.Clock}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}

	lockOpts := []lock.Option{lock.WithLogger(d.logger)}
	if opts.Probe != nil {
		lockOpts = append(lockOpts, lock.WithProbe(opts.Probe))
	}
	d.lock = lock.New(cfg.LockPath(), lockOpts...)
	if err := d.lock.Acquire(); err != nil {
		return nil, err
	}

	d.tracker = state.NewTracker(cfg.TrackerPath(), cfg.Location(), d.logger)
	d.coordinator = NewCoordinator(d.tracker, d.lock, d.logger)
	if opts.Exit != nil {
		d.coordinator.WithExit(opts.Exit)
	}

	if err := d.tracker.Load(d.clock.Now()); err != nil {
		d.logger.Error("Failed to initialize tracker record", logfields.Path(d.tracker.Path()), logfields.Error(err))
	}

	d.repo = opts.Repository
	if d.repo == nil {
		repo, err := git.Open(cfg)
		if err != nil {
			d.coordinator.Teardown()
			return nil, err
		}
		d.repo = repo
	}

	d.openHistory()
	recorder := d.openMetrics()

	execOpts := []commit.Option{
		commit.WithClock(d.clock),
		commit.WithRecorder(recorder),
		commit.WithLogger(d.logger),
	}
	schedOpts := []SchedulerOption{
		WithSchedulerClock(d.clock),
		WithJournal(d.journal),
		WithMetrics(recorder),
		WithSchedulerLogger(d.logger),
	}
	if opts.Sleeper != nil {
		execOpts = append(execOpts, commit.WithSleeper(opts.Sleeper))
		schedOpts = append(schedOpts, WithDelaySleeper(opts.Sleeper))
	}
	if opts.Rand != nil {
		schedOpts = append(schedOpts, WithRand(opts.Rand))
	}

	d.health = NewHealthChecker(cfg, d.repo, d.clock)
	d.executor = commit.NewExecutor(cfg, d.repo, execOpts...)
	d.scheduler = NewScheduler(SettingsFromConfig(cfg), d.health, d.tracker, d.executor, schedOpts...)

	d.logger.Info("Daemon initialized",
		logfields.Repository(cfg.RepoPath), logfields.Branch(cfg.Branch), logfields.PID(os.Getpid()),
		slog.String("config", cfg.String()))
	return d, nil
}

// openHistory opens the tick history store. Failures only disable history.
func (d *Daemon) openHistory() {
	path := d.cfg.HistoryPath()
	if path == "" {
		return
	}
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		d.logger.Warn("Tick history disabled", logfields.Path(path), logfields.Error(err))
		return
	}
	projection := eventstore.NewTickHistoryProjection(store, historySize)
	if err := projection.Rebuild(context.Background()); err != nil {
		d.logger.Warn("Failed to rebuild tick history", logfields.Error(err))
	}
	d.journal = eventstore.NewJournal(store, projection, d.logger)
	d.coordinator.OnTeardown("history", d.journal.Close)
}

// openMetrics binds the metrics endpoint when configured. A bind failure
// leaves metrics collected in-process only.
func (d *Daemon) openMetrics() metrics.Recorder {
	if d.cfg.MetricsAddr == "" {
		return metrics.NoopRecorder{}
	}
	reg := metrics.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	srv, err := metrics.Listen(d.cfg.MetricsAddr, reg)
	if err != nil {
		d.logger.Warn("Metrics endpoint disabled", slog.String("addr", d.cfg.MetricsAddr), logfields.Error(err))
		return recorder
	}
	d.metricsSrv = srv
	d.coordinator.OnTeardown("metrics", srv.Close)
	return recorder
}

// Scheduler exposes the scheduler, mainly for tests.
func (d *Daemon) Scheduler() *Scheduler { return d.scheduler }

// History returns the tick history projection, or nil when disabled.
func (d *Daemon) History() *eventstore.TickHistoryProjection { return d.journal.Projection() }

// Run drives the scheduler until ctx is canceled, a termination signal
// arrives or a fatal error occurs, then tears down. The returned error is
// nil on graceful shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := d.opts.Signals
	if signals == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}
	stopWatch := make(chan struct{})
	d.workers.Go(func() { d.coordinator.Watch(signals, cancel, stopWatch) })

	if d.metricsSrv != nil {
		srv := d.metricsSrv
		d.workers.Go(func() {
			if err := srv.Serve(ctx); err != nil {
				d.logger.Error("Metrics server failed", logfields.Error(err))
			}
		})
	}

	if d.opts.ConfigPath != "" {
		policy := NewReloadPolicy(d.cfg, d.scheduler, d.logger)
		watcher, err := NewConfigWatcher(d.opts.ConfigPath, policy, d.logger)
		if err == nil {
			d.coordinator.OnTeardown("config watcher", watcher.Close)
			err = watcher.Start(ctx)
		}
		if err != nil {
			d.logger.Warn("Config reload disabled", logfields.Error(err))
		}
	}

	d.logger.Info("Scheduler started",
		slog.Int("schedule_start", d.cfg.ScheduleStart),
		slog.Int("schedule_end", d.cfg.ScheduleEnd),
		slog.Int("daily_limit", d.cfg.DailyLimit))
	err := d.scheduler.Run(ctx)
	if err != nil {
		d.logger.Error("Scheduler stopped on fatal error", logfields.Error(err))
	}

	close(stopWatch)
	cancel()
	d.shutdown()
	return err
}

// RunOnce performs a single tick and tears down.
func (d *Daemon) RunOnce(ctx context.Context) (TickResult, error) {
	res, err := d.scheduler.Tick(ctx)
	d.shutdown()
	return res, err
}

// Shutdown tears the daemon down. It is safe to call more than once and
// concurrently with the signal path.
func (d *Daemon) Shutdown() { d.shutdown() }

func (d *Daemon) shutdown() {
	d.coordinator.Teardown()
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.workers.StopAndWait(waitCtx); err != nil {
		d.logger.Warn("Timed out waiting for background workers", logfields.Error(err))
	}
}
