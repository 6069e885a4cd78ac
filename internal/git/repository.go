package git

import (
	"context"
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

// ErrNothingToCommit is returned by Commit when the index has no changes.
var ErrNothingToCommit = stderrors.New("nothing to commit")

// CommitRequest describes one commit.
type CommitRequest struct {
	Message     string
	When        time.Time // author and committer time, already in the configured zone
	AuthorName  string    // optional, falls back to repository config
	AuthorEmail string
}

// Repository is the version-control surface used by the commit executor and
// the health check.
type Repository interface {
	// Path returns the work tree root.
	Path() string
	// Ping verifies the repository opens and the backend responds.
	Ping(ctx context.Context) error
	// HasRemote reports whether the configured remote exists.
	HasRemote(ctx context.Context) (bool, error)
	// CheckRemote verifies the configured remote is reachable.
	CheckRemote(ctx context.Context) error
	// Commit stages all changes and commits them, returning the new hash.
	Commit(ctx context.Context, req CommitRequest) (string, error)
	// Push publishes the branch to the remote.
	Push(ctx context.Context) error
}

// Options selects the branch, remote and credentials for a Repository.
type Options struct {
	Path   string
	Branch string
	Remote string
	Token  string // optional HTTPS token

	// Excludes are repository-relative paths Commit never stages. Entries
	// ending in "/" name directories.
	Excludes []string
}

// OptionsFromConfig extracts repository options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Path:   cfg.RepoPath,
		Branch: cfg.Branch,
		Remote: cfg.Remote,
		Token:  cfg.PushToken,

		Excludes: cfg.StateExcludes(),
	}
}

// Open returns the Repository for the configured backend.
func Open(cfg *config.Config) (Repository, error) {
	opts := OptionsFromConfig(cfg)
	switch cfg.GitBackend {
	case config.GitBackendGoGit:
		return OpenGoGit(opts)
	case config.GitBackendCLI, "":
		return NewCLI(opts, ExecRunner{}), nil
	default:
		return nil, errors.ConfigError("unknown git backend").
			WithContext("backend", string(cfg.GitBackend)).
			Build()
	}
}
