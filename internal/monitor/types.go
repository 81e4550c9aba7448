// Package monitor holds the detection state machine: the per-window
// detection cycle, the externally observable presence mirror, and the
// per-check orchestrator that drives notifications from classifier
// verdicts.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Confidence is the classifier's self-reported confidence level.
type Confidence string

const (
	ConfidenceNone   Confidence = ""
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence maps the classifier's string to a Confidence.
func ParseConfidence(s string) (Confidence, error) {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceLow:
		return ConfidenceLow, nil
	case ConfidenceMedium:
		return ConfidenceMedium, nil
	case ConfidenceHigh:
		return ConfidenceHigh, nil
	}
	return ConfidenceNone, fmt.Errorf("monitor: unknown confidence %q", s)
}

// Verdict is one classifier result. Immutable; produced once per check.
type Verdict struct {
	Present     bool
	Confidence  Confidence
	Description string
}

// Priority selects the notification urgency. Values mirror the escalation
// ladder: low for diagnostics and confirmations, emergency for missing-bin
// alerts (retried by the transport until acknowledged or expired).
type Priority int

const (
	PriorityLow       Priority = -1
	PriorityNormal    Priority = 0
	PriorityHigh      Priority = 1
	PriorityEmergency Priority = 2
)

// Notification is one outbound push message.
type Notification struct {
	Title    string
	Message  string
	Priority Priority
	Image    []byte // optional JPEG attachment
}

// Phase distinguishes the presence mirror's lifecycle states so consumers
// can tell "never checked" and "window ended" apart from a genuine
// checked-and-absent verdict.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseChecked Phase = "checked"
	PhaseEnded   Phase = "ended"
)

// PresenceSnapshot is the externally observable mirror of the latest
// verdict. Write-only from the core's perspective: it is pushed to the
// presence store and never read back into decisions.
type PresenceSnapshot struct {
	Present     bool       `json:"present"`
	Confidence  Confidence `json:"confidence,omitempty"`
	Description string     `json:"description"`
	LastChecked time.Time  `json:"last_checked,omitzero"`
	Phase       Phase      `json:"phase"`
}

// Camera returns raw image bytes for the configured camera.
type Camera interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// Classifier decides whether the bin is positioned for pickup.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Verdict, error)
}

// Notifier delivers push notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// PresenceStore mirrors presence snapshots to an external store.
// Fire-and-forget: failures are logged by the caller and never fatal.
type PresenceStore interface {
	SetPresence(ctx context.Context, snap PresenceSnapshot) error
}
