package git

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	args []string
	env  []string
}

type reply struct {
	out string
	err error
}

// scriptedRunner answers by the first git argument.
type scriptedRunner struct {
	calls   []call
	replies map[string][]reply
}

func (r *scriptedRunner) Run(_ context.Context, _ string, env []string, args ...string) (string, error) {
	r.calls = append(r.calls, call{args: args, env: env})
	key := args[0]
	if key == "-c" && len(args) > 2 {
		key = args[2]
	}
	queue := r.replies[key]
	if len(queue) == 0 {
		return "", nil
	}
	next := queue[0]
	r.replies[key] = queue[1:]
	return next.out, next.err
}

func (r *scriptedRunner) find(sub string) *call {
	for i := range r.calls {
		if r.calls[i].args[0] == sub {
			return &r.calls[i]
		}
	}
	return nil
}

func dirty() []reply {
	return []reply{{err: &CommandError{Args: []string{"diff"}, ExitCode: 1}}}
}

func TestCLICommitSetsDates(t *testing.T) {
	runner := &scriptedRunner{replies: map[string][]reply{
		"diff":      dirty(),
		"rev-parse": {{out: "abc123\n"}},
	}}
	repo := NewCLI(Options{Path: "/r", Branch: "main", Remote: "origin"}, runner)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	when := time.Date(2024, 3, 4, 10, 0, 0, 0, tokyo)

	hash, err := repo.Commit(context.Background(), CommitRequest{
		Message: "Update at 2024-03-04 10:00:00", When: when, AuthorName: "Bot", AuthorEmail: "bot@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)

	add := runner.find("add")
	require.NotNil(t, add)
	assert.Equal(t, []string{"add", "-A"}, add.args)

	commit := runner.find("commit")
	require.NotNil(t, commit)
	assert.Contains(t, commit.env, "GIT_AUTHOR_DATE=2024-03-04T10:00:00+09:00")
	assert.Contains(t, commit.env, "GIT_COMMITTER_DATE=2024-03-04T10:00:00+09:00")
	assert.Contains(t, commit.env, "GIT_AUTHOR_NAME=Bot")
	assert.Equal(t, "Update at 2024-03-04 10:00:00", commit.args[len(commit.args)-1])
}

func TestCLICommitNothingStaged(t *testing.T) {
	runner := &scriptedRunner{replies: map[string][]reply{}}
	repo := NewCLI(Options{Path: "/r"}, runner)
	_, err := repo.Commit(context.Background(), CommitRequest{Message: "m", When: time.Now()})
	require.ErrorIs(t, err, ErrNothingToCommit)
	assert.Nil(t, runner.find("commit"))
}

func TestCLICommitFailureIsClassified(t *testing.T) {
	runner := &scriptedRunner{replies: map[string][]reply{
		"add": {{err: &CommandError{Args: []string{"add", "-A"}, ExitCode: 128,
			Stderr: "fatal: Unable to create '/r/.git/index.lock': File exists."}}},
	}}
	repo := NewCLI(Options{Path: "/r"}, runner)
	_, err := repo.Commit(context.Background(), CommitRequest{Message: "m", When: time.Now()})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestCLIPushWithToken(t *testing.T) {
	runner := &scriptedRunner{replies: map[string][]reply{}}
	repo := NewCLI(Options{Path: "/r", Branch: "main", Remote: "origin", Token: "s3cret"}, runner)
	require.NoError(t, repo.Push(context.Background()))

	require.Len(t, runner.calls, 1)
	args := runner.calls[0].args
	assert.Equal(t, "-c", args[0])
	assert.True(t, strings.HasPrefix(args[1], "http.extraHeader=Authorization: Basic "))
	assert.NotContains(t, args[1], "s3cret")
	assert.Equal(t, []string{"push", "origin", "HEAD:refs/heads/main"}, args[2:])
}

func TestCLIHasRemote(t *testing.T) {
	runner := &scriptedRunner{replies: map[string][]reply{"remote": {{out: "origin\nupstream\n"}, {out: "upstream\n"}}}}
	repo := NewCLI(Options{Path: "/r", Remote: "origin"}, runner)

	ok, err := repo.HasRemote(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasRemote(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = NewCLI(Options{Path: "/r"}, runner).HasRemote(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCLIPing(t *testing.T) {
	runner := &scriptedRunner{replies: map[string][]reply{"rev-parse": {{out: "true\n"}, {out: "false\n"}}}}
	repo := NewCLI(Options{Path: "/r"}, runner)
	require.NoError(t, repo.Ping(context.Background()))
	require.Error(t, repo.Ping(context.Background()))
}

func TestCLICommitExcludesStatePaths(t *testing.T) {
	runner := &scriptedRunner{replies: map[string][]reply{
		"diff":      dirty(),
		"rev-parse": {{out: "abc123\n"}},
	}}
	repo := NewCLI(Options{Path: "/r", Excludes: []string{".cadence/", "cadence.log"}}, runner)

	_, err := repo.Commit(context.Background(), CommitRequest{Message: "m", When: time.Now()})
	require.NoError(t, err)

	add := runner.find("add")
	require.NotNil(t, add)
	assert.Equal(t, []string{"add", "-A", "--", ".", ":(top,exclude).cadence", ":(top,exclude)cadence.log"}, add.args)
}
