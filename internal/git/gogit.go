package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GoGit is a Repository backed by go-git. It needs no git binary.
type GoGit struct {
	opts Options
	repo *gogit.Repository
}

// OpenGoGit opens the repository at opts.Path.
func OpenGoGit(opts Options) (*GoGit, error) {
	repo, err := gogit.PlainOpen(opts.Path)
	if err != nil {
		return nil, Classify(err, "open")
	}
	return &GoGit{opts: opts, repo: repo}, nil
}

// Path implements Repository.
func (g *GoGit) Path() string { return g.opts.Path }

func (g *GoGit) auth() transport.AuthMethod {
	if g.opts.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: g.opts.Token}
}

// Ping implements Repository.
func (g *GoGit) Ping(context.Context) error {
	if _, err := g.repo.Worktree(); err != nil {
		return Classify(err, "worktree")
	}
	if _, err := g.repo.Head(); err != nil && !stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return Classify(err, "head")
	}
	return nil
}

// HasRemote implements Repository.
func (g *GoGit) HasRemote(context.Context) (bool, error) {
	if g.opts.Remote == "" {
		return false, nil
	}
	_, err := g.repo.Remote(g.opts.Remote)
	if stderrors.Is(err, gogit.ErrRemoteNotFound) {
		return false, nil
	}
	if err != nil {
		return false, Classify(err, "remote")
	}
	return true, nil
}

// CheckRemote implements Repository.
func (g *GoGit) CheckRemote(ctx context.Context) error {
	remote, err := g.repo.Remote(g.opts.Remote)
	if err != nil {
		return Classify(err, "remote")
	}
	if _, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: g.auth()}); err != nil {
		return Classify(err, "ls-remote")
	}
	return nil
}

// Commit implements Repository.
func (g *GoGit) Commit(_ context.Context, req CommitRequest) (string, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return "", Classify(err, "worktree")
	}
	for _, p := range g.opts.Excludes {
		wt.Excludes = append(wt.Excludes, gitignore.ParsePattern("/"+strings.TrimSuffix(p, "/"), nil))
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", Classify(err, "add")
	}
	status, err := wt.Status()
	if err != nil {
		return "", Classify(err, "status")
	}
	if status.IsClean() {
		return "", ErrNothingToCommit
	}

	opts := &gogit.CommitOptions{}
	if req.AuthorName != "" || req.AuthorEmail != "" {
		sig := &object.Signature{Name: req.AuthorName, Email: req.AuthorEmail, When: req.When}
		opts.Author = sig
		opts.Committer = sig
	} else {
		// go-git fills name and email from repository and global config.
		if err := opts.Validate(g.repo); err != nil {
			return "", Classify(err, "commit")
		}
		opts.Author.When = req.When
		opts.Committer.When = req.When
	}

	hash, err := wt.Commit(req.Message, opts)
	if err != nil {
		return "", Classify(err, "commit")
	}
	return hash.String(), nil
}

// Push implements Repository.
func (g *GoGit) Push(ctx context.Context) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%[1]s:refs/heads/%[1]s", g.opts.Branch))
	err := g.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: g.opts.Remote,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       g.auth(),
	})
	if err != nil && !stderrors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return Classify(err, "push")
	}
	return nil
}
