// Package git performs the version-control side of a commit cycle: staging
// every change, committing with an explicit timestamp and pushing to a
// remote.
//
// Two backends implement Repository: the git command line (driven through a
// CommandRunner so tests can script it) and the pure-Go go-git library.
// Failures are classified into transient ones, which the commit executor
// retries, and permanent ones, which end the current tick.
package git
