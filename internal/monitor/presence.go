package monitor

import "sync"

// Presence holds the in-process copy of the latest presence snapshot.
// Last write wins; concurrent checks and the window-end reset may
// interleave, which is accepted as cosmetic staleness.
type Presence struct {
	mu   sync.Mutex
	snap PresenceSnapshot
}

// NewPresence returns a Presence in the neutral "no check yet" state.
func NewPresence() *Presence {
	return &Presence{
		snap: PresenceSnapshot{
			Phase:       PhaseIdle,
			Description: "No check performed yet",
		},
	}
}

// Set overwrites the snapshot.
func (p *Presence) Set(snap PresenceSnapshot) {
	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (p *Presence) Snapshot() PresenceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}
