package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// initRepo creates a repository with one commit on main and a bare origin.
func initRepo(t *testing.T) (work, origin string) {
	t.Helper()
	requireGit(t)
	root := t.TempDir()
	work = filepath.Join(root, "work")
	origin = filepath.Join(root, "origin.git")

	run := func(dir string, args ...string) {
		t.Helper()
		_, err := ExecRunner{}.Run(context.Background(), dir, nil, args...)
		require.NoError(t, err, "git %v", args)
	}
	require.NoError(t, os.MkdirAll(work, 0o755))
	run(root, "init", "--bare", "-b", "main", origin)
	run(work, "init", "-b", "main")
	run(work, "config", "user.name", "Test User")
	run(work, "config", "user.email", "test@example.com")
	run(work, "config", "commit.gpgsign", "false")
	require.NoError(t, os.WriteFile(filepath.Join(work, "README"), []byte("hi\n"), 0o644))
	run(work, "add", "-A")
	run(work, "commit", "-m", "initial")
	run(work, "remote", "add", "origin", origin)
	run(work, "push", "origin", "main")
	return work, origin
}

func lastAuthorDate(t *testing.T, dir string) string {
	t.Helper()
	out, err := ExecRunner{}.Run(context.Background(), dir, nil, "log", "-1", "--format=%aI")
	require.NoError(t, err)
	return strings.TrimSpace(out)
}

func backends(t *testing.T, work string) map[string]Repository {
	t.Helper()
	opts := Options{Path: work, Branch: "main", Remote: "origin"}
	gg, err := OpenGoGit(opts)
	require.NoError(t, err)
	return map[string]Repository{"cli": NewCLI(opts, nil), "gogit": gg}
}

func TestBackendsCommitAndPush(t *testing.T) {
	for _, name := range []string{"cli", "gogit"} {
		t.Run(name, func(t *testing.T) {
			work, origin := initRepo(t)
			repo := backends(t, work)[name]
			ctx := context.Background()

			require.NoError(t, repo.Ping(ctx))
			ok, err := repo.HasRemote(ctx)
			require.NoError(t, err)
			assert.True(t, ok)
			require.NoError(t, repo.CheckRemote(ctx))

			_, err = repo.Commit(ctx, CommitRequest{Message: "noop", When: time.Now()})
			require.ErrorIs(t, err, ErrNothingToCommit)

			require.NoError(t, os.WriteFile(filepath.Join(work, "activity.log"), []byte(" Update at x\n"), 0o644))
			loc := time.FixedZone("UTC+5", 5*3600)
			when := time.Date(2024, 3, 4, 10, 30, 0, 0, loc)
			hash, err := repo.Commit(ctx, CommitRequest{Message: "Update at x", When: when})
			require.NoError(t, err)
			assert.Len(t, hash, 40)
			assert.Equal(t, "2024-03-04T10:30:00+05:00", lastAuthorDate(t, work))

			require.NoError(t, repo.Push(ctx))
			remoteHead, err := ExecRunner{}.Run(ctx, origin, nil, "rev-parse", "main")
			require.NoError(t, err)
			assert.Equal(t, hash, strings.TrimSpace(remoteHead))
		})
	}
}

func TestCheckRemoteUnreachable(t *testing.T) {
	work, origin := initRepo(t)
	require.NoError(t, os.RemoveAll(origin))
	for name, repo := range backends(t, work) {
		assert.Error(t, repo.CheckRemote(context.Background()), name)
	}
}

func TestOpenGoGitNotARepository(t *testing.T) {
	_, err := OpenGoGit(Options{Path: t.TempDir()})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestBackendsCommitSkipsExcludedPaths(t *testing.T) {
	for _, name := range []string{"cli", "gogit"} {
		t.Run(name, func(t *testing.T) {
			work, _ := initRepo(t)
			opts := Options{Path: work, Branch: "main", Remote: "origin", Excludes: []string{".cadence/", "cadence.log"}}
			var repo Repository = NewCLI(opts, nil)
			if name == "gogit" {
				gg, err := OpenGoGit(opts)
				require.NoError(t, err)
				repo = gg
			}

			state := filepath.Join(work, ".cadence")
			require.NoError(t, os.MkdirAll(state, 0o755))
			for _, f := range []string{"tracker.json", "cadence.lock"} {
				require.NoError(t, os.WriteFile(filepath.Join(state, f), []byte("x\n"), 0o644))
			}
			require.NoError(t, os.WriteFile(filepath.Join(work, "cadence.log"), []byte("log\n"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(work, "activity.log"), []byte(" Update at x\n"), 0o644))

			ctx := context.Background()
			_, err := repo.Commit(ctx, CommitRequest{Message: "Update at x", When: time.Now()})
			require.NoError(t, err)

			files, err := ExecRunner{}.Run(ctx, work, nil, "show", "--name-only", "--format=", "HEAD")
			require.NoError(t, err)
			assert.Equal(t, "activity.log", strings.TrimSpace(files))

			// Only state files changed: nothing to commit.
			require.NoError(t, os.WriteFile(filepath.Join(state, "tracker.json"), []byte("y\n"), 0o644))
			_, err = repo.Commit(ctx, CommitRequest{Message: "again", When: time.Now()})
			assert.ErrorIs(t, err, ErrNothingToCommit)
		})
	}
}
