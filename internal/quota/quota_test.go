package quota

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cadence/internal/config"
)

func seeded() Rand { return rand.New(rand.NewPCG(1, 2)) }

// 2024-03-04 is a Monday.
func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 15, 0, 0, time.UTC)
}

func window() Window {
	return Window{StartHour: 9, EndHour: 17, Location: time.UTC}
}

func TestBlocked(t *testing.T) {
	cases := []struct {
		name   string
		w      Window
		now    time.Time
		reason Reason
		block  bool
	}{
		{"weekday in hours", window(), at(4, 10), "", false},
		{"start hour inclusive", window(), at(4, 9), "", false},
		{"end hour exclusive", window(), at(4, 17), ReasonOffHours, true},
		{"evening", window(), at(4, 20), ReasonOffHours, true},
		{"saturday", window(), at(9, 10), ReasonWeekend, true},
		{"sunday evening reports weekend first", window(), at(10, 22), ReasonWeekend, true},
		{"weekend enabled", Window{StartHour: 9, EndHour: 17, Weekends: true}, at(9, 10), "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			reason, blocked := c.w.Blocked(c.now)
			assert.Equal(t, c.block, blocked)
			assert.Equal(t, c.reason, reason)
		})
	}
}

func TestWindowUsesZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	w := Window{StartHour: 9, EndHour: 17, Location: tokyo}
	// 01:00 UTC Monday is 10:00 in Tokyo.
	assert.True(t, w.WithinHours(at(4, 1)))
	// 20:00 UTC Friday is 05:00 Saturday in Tokyo.
	assert.True(t, w.IsRestDay(at(8, 20)))
}

func TestEvaluateSkipOrder(t *testing.T) {
	p := Evaluate(window(), 0, at(9, 20))
	r, skip := p.SkipReason()
	assert.True(t, skip)
	assert.Equal(t, ReasonWeekend, r)

	p = Evaluate(window(), 0, at(4, 20))
	r, _ = p.SkipReason()
	assert.Equal(t, ReasonOffHours, r)

	p = Evaluate(window(), -3, at(4, 10))
	r, _ = p.SkipReason()
	assert.Equal(t, ReasonQuotaExhausted, r)
	assert.Zero(t, p.QuotaRemaining)

	p = Evaluate(window(), 2, at(4, 10))
	_, skip = p.SkipReason()
	assert.False(t, skip)
}

func TestNextInterval(t *testing.T) {
	active, idle := time.Hour, 5*time.Minute
	assert.Equal(t, active, window().NextInterval(at(4, 10), active, idle))
	assert.Equal(t, idle, window().NextInterval(at(4, 20), active, idle))
	assert.Equal(t, idle, window().NextInterval(at(9, 10), active, idle))

	w := window()
	w.Weekends = true
	assert.Equal(t, active, w.NextInterval(at(9, 23), active, idle))
}

func TestPlanBurstWithinBounds(t *testing.T) {
	r := seeded()
	for range 200 {
		p := PlanBurst(r, 2, 5, 10)
		assert.GreaterOrEqual(t, p.Intended, 2)
		assert.LessOrEqual(t, p.Intended, 5)
		assert.Equal(t, p.Intended, p.Planned)
		assert.False(t, p.Truncated())
	}
}

func TestPlanBurstCappedByQuota(t *testing.T) {
	p := PlanBurst(seeded(), 2, 2, 1)
	assert.Equal(t, 2, p.Intended)
	assert.Equal(t, 1, p.Planned)
	assert.True(t, p.Truncated())

	p = PlanBurst(seeded(), 1, 3, 0)
	assert.Zero(t, p.Planned)
}

func TestRandomDelay(t *testing.T) {
	r := seeded()
	for range 200 {
		d := RandomDelay(r, time.Second, 3*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
	assert.Equal(t, 2*time.Second, RandomDelay(r, 2*time.Second, 2*time.Second))
	assert.Zero(t, RandomDelay(r, 0, 0))
}

func TestUntilReset(t *testing.T) {
	assert.Equal(t, 45*time.Minute, UntilReset(time.Date(2024, 3, 4, 23, 15, 0, 0, time.UTC), time.UTC))
}

func TestWindowFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Weekends = true
	require.NoError(t, cfg.Validate())
	w := WindowFromConfig(cfg)
	assert.Equal(t, 9, w.StartHour)
	assert.Equal(t, 17, w.EndHour)
	assert.True(t, w.Weekends)
	assert.Equal(t, time.UTC, w.Location)
}
