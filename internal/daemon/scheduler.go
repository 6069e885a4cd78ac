package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/cadence/internal/commit"
	"git.home.luguber.info/inful/cadence/internal/eventstore"
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/logfields"
	"git.home.luguber.info/inful/cadence/internal/metrics"
	"git.home.luguber.info/inful/cadence/internal/quota"
	"git.home.luguber.info/inful/cadence/internal/retry"
	"git.home.luguber.info/inful/cadence/internal/state"
)

// CommitExecutor performs one commit cycle.
type CommitExecutor interface {
	Execute(ctx context.Context) (commit.Result, error)
}

// TickResult summarizes one tick.
type TickResult struct {
	TickID    string
	Skipped   bool
	Reason    quota.Reason
	Remaining int
	Intended  int
	Planned   int
	Committed int
	Truncated bool // the daily quota cut the burst short
	Canceled  bool
	Err       error // commit failure that ended the burst early
}

// Scheduler is the self-rescheduling tick loop. Only Run drives work, so no
// two commit cycles ever overlap.
type Scheduler struct {
	mu       sync.RWMutex
	settings Settings

	health   HealthProbe
	tracker  *state.Tracker
	executor CommitExecutor
	journal  *eventstore.Journal
	recorder metrics.Recorder
	clock    clockwork.Clock
	rng      quota.Rand
	sleep    retry.Sleeper
	logger   *slog.Logger
	newID    func() string
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock sets the clock.
func WithSchedulerClock(c clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithRand sets the random source for burst sizes and delays.
func WithRand(r quota.Rand) SchedulerOption { return func(s *Scheduler) { s.rng = r } }

// WithDelaySleeper replaces the inter-commit sleeper.
func WithDelaySleeper(fn retry.Sleeper) SchedulerOption { return func(s *Scheduler) { s.sleep = fn } }

// WithJournal records tick history.
func WithJournal(j *eventstore.Journal) SchedulerOption { return func(s *Scheduler) { s.journal = j } }

// WithMetrics attaches a metrics recorder.
func WithMetrics(r metrics.Recorder) SchedulerOption { return func(s *Scheduler) { s.recorder = r } }

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption { return func(s *Scheduler) { s.logger = l } }

// NewScheduler creates a scheduler.
func NewScheduler(settings Settings, health HealthProbe, tracker *state.Tracker, executor CommitExecutor, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		settings: settings,
		health:   health,
		tracker:  tracker,
		executor: executor,
		recorder: metrics.NoopRecorder{},
		clock:    clockwork.NewRealClock(),
		rng:      quota.NewRand(),
		sleep:    retry.Sleep,
		logger:   slog.Default(),
		newID:    func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Settings returns the current settings.
func (s *Scheduler) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the settings; the next tick uses them.
func (s *Scheduler) UpdateSettings(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = next
}

// Run ticks immediately, then keeps rescheduling itself until ctx is done.
// It returns nil on cancellation and stops on the first fatal error, such as
// a failed health check. Non-fatal tick errors are logged and the loop goes on.
func (s *Scheduler) Run(ctx context.Context) error {
	cron, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	cron.Start()
	defer func() {
		if err := cron.Shutdown(); err != nil {
			s.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	fire := make(chan struct{}, 1)
	for {
		if _, err := s.Tick(ctx); err != nil {
			if errors.IsFatal(err) {
				return err
			}
			s.logger.Warn("Tick failed", logfields.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}

		delay := s.NextDelay()
		job, err := cron.NewJob(
			gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(s.clock.Now().Add(delay))),
			gocron.NewTask(func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			}),
			gocron.WithName("tick"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule next tick: %w", err)
		}
		s.logger.Debug("Next tick scheduled", logfields.Delay(delay))

		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			_ = cron.RemoveJob(job.ID())
		}
	}
}

// NextDelay returns the two-tier interval until the next tick.
func (s *Scheduler) NextDelay() time.Duration {
	st := s.Settings()
	return st.Window.NextInterval(s.clock.Now(), st.ActiveInterval, st.IdleInterval)
}

// Tick evaluates eligibility and runs at most one burst. The returned error
// is non-nil only for fatal conditions; commit failures end the burst and
// are reported in TickResult.Err.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	st := s.Settings()
	res := TickResult{TickID: s.newID()}
	log := s.logger.With(logfields.TickID(res.TickID))
	now := s.clock.Now()

	if _, err := s.health.Check(ctx); err != nil {
		// Probes killed by a shutdown say nothing about the repository.
		if ctx.Err() != nil {
			log.Info("Tick canceled during health check")
			res.Canceled = true
			s.recorder.IncTick(metrics.TickCanceled, "")
			return res, nil
		}
		log.Error("Health check failed", logfields.Error(err))
		s.recorder.IncTick(metrics.TickFailed, "health")
		return res, err
	}

	remaining := -1
	reason, blocked := st.Window.Blocked(now)
	if !blocked {
		remaining = s.tracker.RemainingToday(st.DailyLimit, now)
		res.Remaining = remaining
		s.recorder.SetQuotaRemaining(remaining)
		if remaining == 0 {
			reason, blocked = quota.ReasonQuotaExhausted, true
		}
	}
	s.journal.Record(ctx, res.TickID, eventstore.TypeTickStarted, now, eventstore.TickStartedData{Remaining: max(remaining, 0)})

	if blocked {
		res.Skipped = true
		res.Reason = reason
		log.Info("Tick skipped", logfields.Reason(string(reason)))
		s.recorder.IncTick(metrics.TickSkipped, string(reason))
		s.journal.Record(ctx, res.TickID, eventstore.TypeTickSkipped, now,
			eventstore.TickSkippedData{Reason: string(reason), Remaining: max(remaining, 0)})
		return res, nil
	}

	plan := quota.PlanBurst(s.rng, st.MinCommits, st.MaxCommits, remaining)
	res.Intended, res.Planned, res.Truncated = plan.Intended, plan.Planned, plan.Truncated()
	log.Info("Starting burst",
		logfields.Intended(plan.Intended), logfields.Planned(plan.Planned), logfields.Remaining(remaining))

	s.burst(ctx, log, st, &res)

	outcome, label := metrics.TickCommitted, ""
	switch {
	case res.Canceled:
		outcome = metrics.TickCanceled
	case res.Err != nil:
		outcome, label = metrics.TickFailed, string(errors.GetCategory(res.Err))
	case res.Truncated:
		outcome = metrics.TickTruncated
		log.Info("Tick ended early: daily quota reached",
			logfields.Intended(res.Intended), logfields.Committed(res.Committed))
	}
	s.recorder.IncTick(outcome, label)
	s.recorder.SetQuotaRemaining(s.tracker.RemainingToday(st.DailyLimit, s.clock.Now()))

	done := eventstore.TickCompletedData{
		Intended: res.Intended, Planned: res.Planned, Committed: res.Committed, Truncated: res.Truncated,
	}
	if res.Err != nil {
		done.Error = res.Err.Error()
	}
	s.journal.Record(ctx, res.TickID, eventstore.TypeTickCompleted, s.clock.Now(), done)
	log.Info("Tick complete", logfields.Committed(res.Committed), logfields.Planned(res.Planned))
	return res, nil
}

// burst runs the planned commits sequentially with a random pause between them.
func (s *Scheduler) burst(ctx context.Context, log *slog.Logger, st Settings, res *TickResult) {
	for i := 0; i < res.Planned; i++ {
		if i > 0 {
			delay := quota.RandomDelay(s.rng, st.DelayMin, st.DelayMax)
			log.Debug("Pausing before next commit", logfields.Delay(delay))
			if err := s.sleep(ctx, delay); err != nil {
				res.Canceled = true
				return
			}
		}
		if ctx.Err() != nil {
			res.Canceled = true
			return
		}

		out, err := s.executor.Execute(ctx)
		if err != nil && ctx.Err() != nil {
			res.Canceled = true
			log.Warn("Commit cycle interrupted by shutdown",
				logfields.Commit(out.Hash), logfields.Attempts(out.Attempts), logfields.Error(err))
			s.journal.Record(ctx, res.TickID, eventstore.TypeCommitFailed, s.clock.Now(),
				eventstore.CommitFailedData{Attempts: out.Attempts, Error: err.Error()})
			if out.Hash != "" {
				// The commit exists locally; only its push was cut short.
				res.Committed++
				if perr := s.tracker.RecordCommit(out.At); perr != nil {
					log.Error("Failed to persist commit count", logfields.Error(perr))
				}
			}
			return
		}
		if err != nil {
			res.Err = err
			log.Error("Commit failed, ending burst",
				logfields.Attempts(out.Attempts), logfields.Error(err))
			s.journal.Record(ctx, res.TickID, eventstore.TypeCommitFailed, s.clock.Now(),
				eventstore.CommitFailedData{Attempts: out.Attempts, Error: err.Error()})
			return
		}

		res.Committed++
		if perr := s.tracker.RecordCommit(out.At); perr != nil {
			log.Error("Failed to persist commit count", logfields.Error(perr))
		}
		log.Info("Commit created",
			logfields.Commit(out.Hash), logfields.Attempts(out.Attempts),
			slog.Bool("pushed", out.Pushed), logfields.DurationMS(float64(out.Duration.Milliseconds())))
		s.journal.Record(ctx, res.TickID, eventstore.TypeCommitSucceeded, s.clock.Now(),
			eventstore.CommitSucceededData{
				Hash: out.Hash, Attempts: out.Attempts, Pushed: out.Pushed, DurationMS: out.Duration.Milliseconds(),
			})

		// In-flight work finishes; the rest of the burst is dropped on shutdown.
		if ctx.Err() != nil {
			res.Canceled = res.Committed < res.Planned
			return
		}
	}
}
