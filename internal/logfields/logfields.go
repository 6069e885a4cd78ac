package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTickID     = "tick_id"
	KeyReason     = "reason"
	KeyAttempt    = "attempt"
	KeyAttempts   = "attempts"
	KeyCommit     = "commit"
	KeyRepo       = "repository"
	KeyBranch     = "branch"
	KeyRemote     = "remote"
	KeyRemaining  = "remaining"
	KeyPlanned    = "planned"
	KeyIntended   = "intended"
	KeyCommitted  = "committed"
	KeyDelay      = "delay"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyPID        = "pid"
	KeyCheck      = "check"
	KeySignal     = "signal"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func TickID(id string) slog.Attr      { return slog.String(KeyTickID, id) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Attempts(n int) slog.Attr        { return slog.Int(KeyAttempts, n) }
func Commit(hash string) slog.Attr    { return slog.String(KeyCommit, hash) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Remote(r string) slog.Attr       { return slog.String(KeyRemote, r) }
func Remaining(n int) slog.Attr       { return slog.Int(KeyRemaining, n) }
func Planned(n int) slog.Attr         { return slog.Int(KeyPlanned, n) }
func Intended(n int) slog.Attr        { return slog.Int(KeyIntended, n) }
func Committed(n int) slog.Attr       { return slog.Int(KeyCommitted, n) }
func Delay(d time.Duration) slog.Attr { return slog.Duration(KeyDelay, d) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func PID(pid int) slog.Attr           { return slog.Int(KeyPID, pid) }
func Check(name string) slog.Attr     { return slog.String(KeyCheck, name) }
func Signal(s string) slog.Attr       { return slog.String(KeySignal, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
