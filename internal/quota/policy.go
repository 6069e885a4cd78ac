// Package quota decides whether a tick may commit and how large its burst is.
//
// Everything here is a pure function of time, zone and configuration; the
// persisted counter lives in the state package.
package quota

import (
	"time"

	"git.home.luguber.info/inful/cadence/internal/config"
)

// Reason names why a tick was skipped.
type Reason string

const (
	ReasonWeekend        Reason = "weekend"
	ReasonOffHours       Reason = "off-hours"
	ReasonQuotaExhausted Reason = "quota-exhausted"
)

// Window is the working-hours and weekday constraint.
type Window struct {
	StartHour int // inclusive
	EndHour   int // exclusive
	Weekends  bool
	Location  *time.Location
}

// WindowFromConfig extracts the window from a validated configuration.
func WindowFromConfig(cfg *config.Config) Window {
	return Window{
		StartHour: cfg.ScheduleStart,
		EndHour:   cfg.ScheduleEnd,
		Weekends:  cfg.Weekends,
		Location:  cfg.Location(),
	}
}

func (w Window) local(now time.Time) time.Time {
	if w.Location == nil {
		return now.UTC()
	}
	return now.In(w.Location)
}

// IsRestDay reports whether now falls on Saturday or Sunday in the window's zone.
func (w Window) IsRestDay(now time.Time) bool {
	switch w.local(now).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// AllowedDay reports whether commits may run on now's weekday.
func (w Window) AllowedDay(now time.Time) bool {
	return w.Weekends || !w.IsRestDay(now)
}

// WithinHours reports whether now's local hour is in [StartHour, EndHour).
func (w Window) WithinHours(now time.Time) bool {
	h := w.local(now).Hour()
	return h >= w.StartHour && h < w.EndHour
}

// Blocked returns the first time-based reason to skip, checking the weekday
// before the hour.
func (w Window) Blocked(now time.Time) (Reason, bool) {
	if !w.AllowedDay(now) {
		return ReasonWeekend, true
	}
	if !w.WithinHours(now) {
		return ReasonOffHours, true
	}
	return "", false
}

// NextInterval picks the delay until the next tick: active when weekends are
// enabled or now is a working day inside the window, idle otherwise.
func (w Window) NextInterval(now time.Time, active, idle time.Duration) time.Duration {
	if w.Weekends || (!w.IsRestDay(now) && w.WithinHours(now)) {
		return active
	}
	return idle
}

// RunPolicy is the derived eligibility snapshot for one instant.
type RunPolicy struct {
	WithinWorkingHours bool
	AllowedDay         bool
	QuotaRemaining     int
}

// Evaluate builds the RunPolicy for now.
func Evaluate(w Window, remaining int, now time.Time) RunPolicy {
	return RunPolicy{
		WithinWorkingHours: w.WithinHours(now),
		AllowedDay:         w.AllowedDay(now),
		QuotaRemaining:     max(0, remaining),
	}
}

// SkipReason returns the first blocking condition in tick order.
func (p RunPolicy) SkipReason() (Reason, bool) {
	switch {
	case !p.AllowedDay:
		return ReasonWeekend, true
	case !p.WithinWorkingHours:
		return ReasonOffHours, true
	case p.QuotaRemaining == 0:
		return ReasonQuotaExhausted, true
	default:
		return "", false
	}
}

// UntilReset returns the time left until the next local midnight, when the
// daily counter rolls over.
func UntilReset(now time.Time, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc).Sub(local)
}
