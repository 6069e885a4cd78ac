package quota

import (
	"math/rand/v2"
	"time"
)

// Rand is the subset of *rand.Rand used for burst planning.
type Rand interface {
	IntN(n int) int
	Int64N(n int64) int64
}

// NewRand returns a generator seeded from the runtime's entropy source.
func NewRand() Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // scheduling jitter, not security
}

// Plan is the burst decided for one tick.
type Plan struct {
	Intended int // drawn from [min, max]
	Planned  int // min(Intended, remaining)
}

// Truncated reports whether the daily quota cut the burst short.
func (p Plan) Truncated() bool { return p.Intended > p.Planned }

// PlanBurst draws the intended burst uniformly from [minCommits, maxCommits]
// and caps it at remaining.
func PlanBurst(r Rand, minCommits, maxCommits, remaining int) Plan {
	intended := minCommits
	if maxCommits > minCommits {
		intended += r.IntN(maxCommits - minCommits + 1)
	}
	return Plan{Intended: intended, Planned: max(0, min(intended, remaining))}
}

// RandomDelay draws a duration uniformly from [lo, hi].
func RandomDelay(r Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return max(lo, 0)
	}
	return lo + time.Duration(r.Int64N(int64(hi-lo)+1))
}
