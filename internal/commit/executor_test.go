package commit

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
	"git.home.luguber.info/inful/cadence/internal/git"
)

// fakeRepo records calls and replays scripted errors. Once a commit succeeds
// the index is clean until the next marker append, like a real repository.
type fakeRepo struct {
	commitErrs []error
	pushErrs   []error
	noRemote   bool

	commits  int
	pushes   int
	requests []git.CommitRequest
	dirty    func() bool
}

func (f *fakeRepo) Path() string                      { return "/repo" }
func (f *fakeRepo) Ping(context.Context) error        { return nil }
func (f *fakeRepo) CheckRemote(context.Context) error { return nil }
func (f *fakeRepo) HasRemote(context.Context) (bool, error) {
	return !f.noRemote, nil
}

func (f *fakeRepo) Commit(_ context.Context, req git.CommitRequest) (string, error) {
	f.requests = append(f.requests, req)
	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	if f.commits > 0 && !f.dirty() {
		return "", git.ErrNothingToCommit
	}
	f.commits++
	return "deadbeef", nil
}

func (f *fakeRepo) Push(context.Context) error {
	f.pushes++
	if len(f.pushErrs) > 0 {
		err := f.pushErrs[0]
		f.pushErrs = f.pushErrs[1:]
		return err
	}
	return nil
}

type sleepLog struct{ delays []time.Duration }

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func transient() error {
	return git.Classify(stderrors.New("fatal: unable to access: Could not resolve host: example.com"), "push")
}

func permanent() error {
	return git.Classify(stderrors.New("fatal: Authentication failed"), "push")
}

func setup(t *testing.T, mutate func(*config.Config)) (*config.Config, *clockwork.FakeClock) {
	t.Helper()
	cfg := config.Default()
	cfg.RepoPath = t.TempDir()
	cfg.Timezone = "Asia/Tokyo"
	cfg.RetryAttempts = 3
	cfg.RetryDelay = config.Duration(2 * time.Second)
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 4, 1, 2, 3, 0, time.UTC))
	return cfg, clock
}

func newExec(cfg *config.Config, repo *fakeRepo, clock clockwork.Clock, s *sleepLog) *Executor {
	markers := 0
	repo.dirty = func() bool {
		data, _ := os.ReadFile(cfg.TargetPath())
		n := strings.Count(string(data), "\n")
		if n > markers {
			markers = n
			return true
		}
		return false
	}
	return NewExecutor(cfg, repo, WithClock(clock), WithSleeper(s.sleep))
}

func TestExecuteSuccess(t *testing.T) {
	cfg, clock := setup(t, nil)
	repo := &fakeRepo{}
	s := &sleepLog{}

	res, err := newExec(cfg, repo, clock, s).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", res.Hash)
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Pushed)
	assert.Empty(t, s.delays)

	data, err := os.ReadFile(cfg.TargetPath())
	require.NoError(t, err)
	assert.Equal(t, " Update at 2024-03-04 10:02:03\n", string(data))

	require.Len(t, repo.requests, 1)
	assert.Equal(t, "Update at 2024-03-04 10:02:03", repo.requests[0].Message)
	_, offset := repo.requests[0].When.Zone()
	assert.Equal(t, 9*3600, offset, "commit time uses the configured zone")
}

func TestExecuteRetriesPublishWithoutRemutating(t *testing.T) {
	cfg, clock := setup(t, nil)
	repo := &fakeRepo{pushErrs: []error{transient(), transient()}}
	s := &sleepLog{}

	res, err := newExec(cfg, repo, clock, s).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "deadbeef", res.Hash)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, s.delays)
	assert.Equal(t, 3, repo.pushes)
	assert.Equal(t, 1, repo.commits)

	data, err := os.ReadFile(cfg.TargetPath())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "Update at"), "marker appended once")
}

func TestExecuteRetriesTransientCommit(t *testing.T) {
	cfg, clock := setup(t, nil)
	lockErr := git.Classify(stderrors.New("fatal: Unable to create '/r/.git/index.lock': File exists."), "commit")
	repo := &fakeRepo{commitErrs: []error{lockErr}}
	s := &sleepLog{}

	res, err := newExec(cfg, repo, clock, s).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, s.delays, 1)
}

func TestExecutePermanentFailureStopsImmediately(t *testing.T) {
	cfg, clock := setup(t, nil)
	repo := &fakeRepo{pushErrs: []error{permanent()}}
	s := &sleepLog{}

	res, err := newExec(cfg, repo, clock, s).Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, s.delays)
	assert.False(t, errors.IsTransient(err))
}

func TestExecuteExhaustsRetries(t *testing.T) {
	cfg, clock := setup(t, nil)
	repo := &fakeRepo{pushErrs: []error{transient(), transient(), transient(), transient()}}
	s := &sleepLog{}

	res, err := newExec(cfg, repo, clock, s).Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, s.delays, 2)
	assert.True(t, errors.HasCategory(err, errors.CategoryGit))
	assert.False(t, errors.IsTransient(err), "exhaustion is final")
	assert.Contains(t, err.Error(), "Could not resolve host")

	// file mutation stays applied
	data, rerr := os.ReadFile(cfg.TargetPath())
	require.NoError(t, rerr)
	assert.Contains(t, string(data), "Update at")
}

func TestExecuteSkipsPushWithoutRemote(t *testing.T) {
	cfg, clock := setup(t, nil)
	repo := &fakeRepo{noRemote: true}

	res, err := newExec(cfg, repo, clock, &sleepLog{}).Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.Zero(t, repo.pushes)
}

func TestExecutePushDisabled(t *testing.T) {
	cfg, clock := setup(t, func(c *config.Config) { c.Push = false })
	repo := &fakeRepo{}

	res, err := newExec(cfg, repo, clock, &sleepLog{}).Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.Zero(t, repo.pushes)
}

func TestExecuteCanceledDuringRetry(t *testing.T) {
	cfg, clock := setup(t, nil)
	repo := &fakeRepo{pushErrs: []error{transient()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExecutor(cfg, repo, WithClock(clock))
	repo.dirty = func() bool { return true }
	res, err := e.Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "deadbeef", res.Hash, "the commit made before the interruption is reported")
	assert.Equal(t, 1, repo.pushes)
}

func TestExecuteTargetUnwritable(t *testing.T) {
	cfg, clock := setup(t, nil)
	blocker := filepath.Join(cfg.RepoPath, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg.TargetFile = filepath.Join("blocker", "activity.log")

	repo := &fakeRepo{}
	_, err := newExec(cfg, repo, clock, &sleepLog{}).Execute(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
	assert.Empty(t, repo.requests)
}

func TestMessageTemplate(t *testing.T) {
	cfg, _ := setup(t, func(c *config.Config) { c.CommitMessage = "chore: heartbeat {{timestamp}}" })
	e := NewExecutor(cfg, &fakeRepo{})
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "chore: heartbeat 2024-01-02 03:04:05", e.Message(at))
	assert.Equal(t, " Update at 2024-01-02 03:04:05\n", MarkerLine(at))
}
