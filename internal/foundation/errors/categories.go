package errors

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig represents invalid configuration detected before any state is touched.
	CategoryConfig ErrorCategory = "config"

	// CategoryHealth represents a failed pre-tick health check. Always fatal.
	CategoryHealth ErrorCategory = "health"

	// CategoryInstance represents another live process owning the instance lock.
	CategoryInstance ErrorCategory = "instance"
	// CategoryLock represents failure to create or inspect the lock marker.
	CategoryLock ErrorCategory = "lock"

	// CategoryPersistence represents tracker, history, or log write failures.
	CategoryPersistence ErrorCategory = "persistence"

	// CategoryGit represents version-control failures; the retry strategy tells
	// transient from permanent.
	CategoryGit        ErrorCategory = "git"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryEventStore ErrorCategory = "eventstore"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the process
	SeverityError   ErrorSeverity = "error"   // Fails the current operation (tick)
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"     // Permanent failure, don't retry
	RetryImmediate  RetryStrategy = "immediate" // Retry immediately
	RetryBackoff    RetryStrategy = "backoff"   // Retry after the configured delay
	RetryUserAction RetryStrategy = "user"      // Requires user intervention
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}
