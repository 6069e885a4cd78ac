package git

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"strings"
	"time"
)

// CLI is a Repository backed by the git command line.
type CLI struct {
	opts   Options
	runner CommandRunner
}

// NewCLI returns a command-line backed Repository.
func NewCLI(opts Options, runner CommandRunner) *CLI {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CLI{opts: opts, runner: runner}
}

// Path implements Repository.
func (c *CLI) Path() string { return c.opts.Path }

func (c *CLI) git(ctx context.Context, env []string, args ...string) (string, error) {
	return c.runner.Run(ctx, c.opts.Path, env, args...)
}

// authArgs injects an Authorization header when a token is configured.
func (c *CLI) authArgs() []string {
	if c.opts.Token == "" {
		return nil
	}
	cred := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + c.opts.Token))
	return []string{"-c", "http.extraHeader=Authorization: Basic " + cred}
}

// Ping implements Repository.
func (c *CLI) Ping(ctx context.Context) error {
	out, err := c.git(ctx, nil, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return Classify(err, "rev-parse")
	}
	if strings.TrimSpace(out) != "true" {
		return GitError("not a git work tree").WithContext("path", c.opts.Path).Build()
	}
	return nil
}

// HasRemote implements Repository.
func (c *CLI) HasRemote(ctx context.Context) (bool, error) {
	if c.opts.Remote == "" {
		return false, nil
	}
	out, err := c.git(ctx, nil, "remote")
	if err != nil {
		return false, Classify(err, "remote")
	}
	for _, name := range strings.Fields(out) {
		if name == c.opts.Remote {
			return true, nil
		}
	}
	return false, nil
}

// CheckRemote implements Repository.
func (c *CLI) CheckRemote(ctx context.Context) error {
	args := append(c.authArgs(), "ls-remote", "--heads", c.opts.Remote)
	if _, err := c.git(ctx, nil, args...); err != nil {
		return Classify(err, "ls-remote")
	}
	return nil
}

// addArgs stages everything except the configured excludes, expressed as
// top-anchored exclude pathspecs.
func (c *CLI) addArgs() []string {
	args := []string{"add", "-A"}
	if len(c.opts.Excludes) == 0 {
		return args
	}
	args = append(args, "--", ".")
	for _, p := range c.opts.Excludes {
		args = append(args, ":(top,exclude)"+strings.TrimSuffix(p, "/"))
	}
	return args
}

// Commit implements Repository.
func (c *CLI) Commit(ctx context.Context, req CommitRequest) (string, error) {
	if _, err := c.git(ctx, nil, c.addArgs()...); err != nil {
		return "", Classify(err, "add")
	}

	// diff --cached --quiet exits 1 when the index differs from HEAD.
	_, err := c.git(ctx, nil, "diff", "--cached", "--quiet")
	if err == nil {
		return "", ErrNothingToCommit
	}
	var cmdErr *CommandError
	if !stderrors.As(err, &cmdErr) || cmdErr.ExitCode != 1 {
		return "", Classify(err, "diff")
	}

	stamp := req.When.Format(time.RFC3339)
	env := []string{"GIT_AUTHOR_DATE=" + stamp, "GIT_COMMITTER_DATE=" + stamp}
	if req.AuthorName != "" {
		env = append(env, "GIT_AUTHOR_NAME="+req.AuthorName, "GIT_COMMITTER_NAME="+req.AuthorName)
	}
	if req.AuthorEmail != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+req.AuthorEmail, "GIT_COMMITTER_EMAIL="+req.AuthorEmail)
	}
	if _, err := c.git(ctx, env, "commit", "--no-verify", "-m", req.Message); err != nil {
		return "", Classify(err, "commit")
	}

	out, err := c.git(ctx, nil, "rev-parse", "HEAD")
	if err != nil {
		return "", Classify(err, "rev-parse")
	}
	return strings.TrimSpace(out), nil
}

// Push implements Repository.
func (c *CLI) Push(ctx context.Context) error {
	args := append(c.authArgs(), "push", c.opts.Remote, "HEAD:refs/heads/"+c.opts.Branch)
	if _, err := c.git(ctx, nil, args...); err != nil {
		return Classify(err, "push")
	}
	return nil
}

// Version returns the git binary version string.
func (c *CLI) Version(ctx context.Context) (string, error) {
	out, err := c.git(ctx, nil, "--version")
	if err != nil {
		return "", Classify(err, "version")
	}
	return strings.TrimSpace(out), nil
}
