package monitor

import "sync"

// DetectionCycle is the per-window detection state. Exactly one cycle
// exists; Begin re-arms it at each recurrence. Checks scheduled close
// together can run concurrently, so the first-success flag is a
// mutex-guarded check-and-set.
type DetectionCycle struct {
	mu                   sync.Mutex
	active               bool
	firstSuccessNotified bool
}

// NewDetectionCycle returns an inactive cycle.
func NewDetectionCycle() *DetectionCycle {
	return &DetectionCycle{}
}

// Begin re-arms the cycle for a new window. Called once per recurrence,
// before any check is registered.
func (c *DetectionCycle) Begin() {
	c.mu.Lock()
	c.active = true
	c.firstSuccessNotified = false
	c.mu.Unlock()
}

// MarkFirstSuccessIfNeeded returns true exactly once per cycle: on the
// first call after Begin. Callers invoke it only for a present verdict.
func (c *DetectionCycle) MarkFirstSuccessIfNeeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstSuccessNotified {
		return false
	}
	c.firstSuccessNotified = true
	return true
}

// FirstSuccessNotified reports whether the confirmation was sent this cycle.
func (c *DetectionCycle) FirstSuccessNotified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstSuccessNotified
}

// End marks the window over. The first-success flag is left as-is; the
// next Begin resets it.
func (c *DetectionCycle) End() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// Active reports whether a monitoring window is in progress.
func (c *DetectionCycle) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
