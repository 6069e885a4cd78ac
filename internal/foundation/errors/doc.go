// Package errors provides the classified error primitives used across cadence.
//
// Every failure that crosses a component boundary is expressed as a
// ClassifiedError so callers can decide, without string matching, whether it
// stops the process, aborts the current tick, or can be retried.
//
// Key features:
//   - ErrorCategory: broad classification (config, health, instance, lock, persistence, git, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: retry behavior (never, immediate, backoff, user)
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit code and presentation mapping for the CLI
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryGit, "push failed").
//		Retryable().
//		WithContext("remote", "origin").
//		WithCause(originalErr).
//		Build()
package errors
