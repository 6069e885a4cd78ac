// Package commit runs one commit cycle: append a marker line to the target
// file, then stage, commit and push with bounded retry on transient failures.
package commit

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/git"
	"git.home.luguber.info/inful/cadence/internal/logfields"
	"git.home.luguber.info/inful/cadence/internal/metrics"
	"git.home.luguber.info/inful/cadence/internal/retry"
)

// TimestampLayout renders marker and message timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Result describes a successful cycle.
type Result struct {
	Hash     string
	Attempts int
	Pushed   bool
	At       time.Time // local commit time
	Duration time.Duration
}

// Executor performs commit cycles. It is not safe for concurrent use; the
// scheduler drives it sequentially.
type Executor struct {
	repo        git.Repository
	target      string
	message     string
	push        bool
	authorName  string
	authorEmail string
	loc         *time.Location
	policy      retry.Policy

	clock    clockwork.Clock
	sleep    retry.Sleeper
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the clock used for commit timestamps.
func WithClock(c clockwork.Clock) Option { return func(e *Executor) { e.clock = c } }

// WithSleeper replaces the retry sleeper.
func WithSleeper(s retry.Sleeper) Option { return func(e *Executor) { e.sleep = s } }

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(e *Executor) { e.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.logger = l } }

// NewExecutor builds an Executor for repo from a validated configuration.
func NewExecutor(cfg *config.Config, repo git.Repository, opts ...Option) *Executor {
	e := &Executor{
		repo:        repo,
		target:      cfg.TargetPath(),
		message:     cfg.CommitMessage,
		push:        cfg.Push,
		authorName:  cfg.AuthorName,
		authorEmail: cfg.AuthorEmail,
		loc:         cfg.Location(),
		policy:      retry.FromConfig(cfg),
		clock:       clockwork.NewRealClock(),
		sleep:       retry.Sleep,
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// MarkerLine returns the line appended to the target file for t.
func MarkerLine(t time.Time) string {
	return " Update at " + t.Format(TimestampLayout) + "\n"
}

// Message renders the commit message for t.
func (e *Executor) Message(t time.Time) string {
	msg := e.message
	if msg == "" {
		msg = "Update at " + config.TimestampPlaceholder
	}
	return strings.ReplaceAll(msg, config.TimestampPlaceholder, t.Format(TimestampLayout))
}

// Execute runs one cycle. The file mutation is applied once and never rolled
// back; only stage, commit and push are retried. Permanent failures return
// immediately and exhausted retries return the last error.
//
// Canceling ctx never interrupts a running git step. It is observed only
// between attempts, so a shutdown ends the cycle at the next retry boundary
// with Result.Hash set when a commit already exists.
func (e *Executor) Execute(ctx context.Context) (Result, error) {
	start := e.clock.Now()
	now := start.In(e.loc)

	if err := e.appendMarker(now); err != nil {
		e.recorder.IncCommit(metrics.ResultFailed)
		return Result{}, err
	}

	res, err := e.publish(ctx, now)
	res.At = now
	res.Duration = e.clock.Since(start)
	e.recorder.ObserveCommitDuration(res.Duration)
	if err != nil {
		e.recorder.IncCommit(metrics.ResultFailed)
		return res, err
	}
	e.recorder.IncCommit(metrics.ResultSuccess)
	return res, nil
}

func (e *Executor) appendMarker(now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(e.target), 0o755); err != nil {
		return errors.FileSystemError("failed to create target directory").
			WithCause(err).
			WithContext("path", e.target).
			Build()
	}
	f, err := os.OpenFile(e.target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.FileSystemError("failed to open target file").
			WithCause(err).
			WithContext("path", e.target).
			Build()
	}
	_, werr := f.WriteString(MarkerLine(now))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return errors.FileSystemError("failed to append to target file").
			WithCause(werr).
			WithContext("path", e.target).
			Build()
	}
	return nil
}

func (e *Executor) publish(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	work := context.WithoutCancel(ctx)

	push := e.push
	if push {
		ok, err := e.repo.HasRemote(work)
		if err != nil {
			return res, err
		}
		push = ok
	}

	req := git.CommitRequest{
		Message:     e.Message(now),
		When:        now,
		AuthorName:  e.authorName,
		AuthorEmail: e.authorEmail,
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.Attempts; attempt++ {
		res.Attempts = attempt
		if attempt > 1 {
			delay := e.policy.Delay(attempt - 1)
			e.logger.Warn("Retrying commit cycle",
				logfields.Attempt(attempt), logfields.Attempts(e.policy.Attempts),
				logfields.Delay(delay), logfields.Error(lastErr))
			e.recorder.IncCommitRetry()
			err := e.sleep(ctx, delay)
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				return res, errors.WrapError(err, errors.CategoryRuntime, "commit retry interrupted").
					WithContext("last_error", lastErr.Error()).
					Build()
			}
		}

		lastErr = e.attempt(work, req, push, &res)
		if lastErr == nil {
			return res, nil
		}
		if !git.IsTransient(lastErr) {
			return res, lastErr
		}
	}

	return res, errors.WrapError(lastErr, errors.CategoryGit,
		fmt.Sprintf("commit cycle failed after %d attempts", e.policy.Attempts)).
		WithContext("attempts", e.policy.Attempts).
		Build()
}

// attempt runs stage, commit and push once. A commit left by an earlier
// attempt shows up as nothing to commit and is carried forward to the push.
func (e *Executor) attempt(ctx context.Context, req git.CommitRequest, push bool, res *Result) error {
	hash, err := e.repo.Commit(ctx, req)
	switch {
	case err == nil:
		res.Hash = hash
	case stderrors.Is(err, git.ErrNothingToCommit) && res.Hash != "":
		e.logger.Debug("Commit already recorded by earlier attempt", logfields.Commit(res.Hash))
	case stderrors.Is(err, git.ErrNothingToCommit):
		return errors.GitError("target file change produced nothing to commit").
			WithCause(err).
			WithContext("path", e.target).
			Build()
	default:
		return err
	}

	if !push {
		return nil
	}
	if err := e.repo.Push(ctx); err != nil {
		return err
	}
	res.Pushed = true
	return nil
}
