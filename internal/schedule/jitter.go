// Package schedule provides the process-wide timer registry and the check
// offset jitter.
package schedule

import (
	"math/rand"
	"sync"
	"time"
)

// Jitter perturbs scheduled offsets by a uniform random amount in
// [-spread, +spread]. The random source is injected so tests can pin the
// sequence.
type Jitter struct {
	spread time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter returns a Jitter with the given symmetric spread. A nil rng
// falls back to a time-seeded source.
func NewJitter(spread time.Duration, rng *rand.Rand) *Jitter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Jitter{spread: spread, rng: rng}
}

// Apply returns base shifted by a random amount within the spread, clamped
// at zero so an early-window check can never be scheduled in the past.
func (j *Jitter) Apply(base time.Duration) time.Duration {
	if j.spread <= 0 {
		return base
	}

	j.mu.Lock()
	delta := time.Duration(j.rng.Int63n(int64(2*j.spread)+1)) - j.spread
	j.mu.Unlock()

	out := base + delta
	if out < 0 {
		return 0
	}
	return out
}
