package git

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

// GitError simplifies creating a git-scoped ClassifiedError.
func GitError(message string) *errors.ErrorBuilder {
	return errors.GitError(message)
}

// NetworkError marks a remote that is temporarily unreachable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: remote unreachable: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// LockContentionError marks a repository locked by another git process.
type LockContentionError struct {
	Op  string
	Err error
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("%s: repository locked: %v", e.Op, e.Err)
}
func (e *LockContentionError) Unwrap() error { return e.Err }

var networkPatterns = []string{
	"could not resolve host",
	"could not read from remote repository",
	"connection timed out",
	"connection refused",
	"connection reset",
	"remote end hung up",
	"remote hung up",
	"network is unreachable",
	"no route to host",
	"temporary failure in name resolution",
	"operation timed out",
	"i/o timeout",
	"early eof",
	"the requested url returned error: 5",
	"rate limit",
	"too many requests",
}

var lockPatterns = []string{
	"index.lock",
	".lock': file exists",
	"another git process seems to be running",
	"unable to create",
	"cannot lock ref",
	"resource temporarily unavailable",
}

// transientKind returns the transient class of err, or "" when permanent.
func transientKind(err error) string {
	var nerr *NetworkError
	var lerr *LockContentionError
	switch {
	case stderrors.As(err, &nerr):
		return "network"
	case stderrors.As(err, &lerr):
		return "lock"
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return "network"
	}

	l := strings.ToLower(err.Error())
	for _, p := range lockPatterns {
		if strings.Contains(l, p) {
			return "lock"
		}
	}
	for _, p := range networkPatterns {
		if strings.Contains(l, p) {
			return "network"
		}
	}
	return ""
}

// isPermanent recognises failures that retrying can never fix.
func isPermanent(err error) bool {
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed),
		stderrors.Is(err, transport.ErrRepositoryNotFound),
		stderrors.Is(err, gogit.ErrNonFastForwardUpdate),
		stderrors.Is(err, gogit.ErrRepositoryNotExists):
		return true
	}
	l := strings.ToLower(err.Error())
	return strings.Contains(l, "authentication failed") ||
		strings.Contains(l, "permission denied") ||
		strings.Contains(l, "non-fast-forward") ||
		strings.Contains(l, "not a git repository")
}

// Classify translates a backend failure during op into a ClassifiedError.
// Transient failures are marked retryable; everything else is permanent.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	b := GitError(fmt.Sprintf("git %s failed", op)).WithContext("op", op)
	if isPermanent(err) {
		return b.WithCause(err).Build()
	}
	switch transientKind(err) {
	case "network":
		if !stderrors.As(err, new(*NetworkError)) {
			err = &NetworkError{Op: op, Err: err}
		}
		return b.WithCause(err).WithContext("transient", "network").Retryable().Build()
	case "lock":
		if !stderrors.As(err, new(*LockContentionError)) {
			err = &LockContentionError{Op: op, Err: err}
		}
		return b.WithCause(err).WithContext("transient", "lock").Retryable().Build()
	default:
		return b.WithCause(err).Build()
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := errors.AsClassified(err); ok {
		return ce.IsTransient()
	}
	return !isPermanent(err) && transientKind(err) != ""
}
