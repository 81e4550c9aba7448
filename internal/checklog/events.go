// Package checklog writes the append-only JSONL history of every decision
// the daemon makes: window lifecycle, per-check verdicts, notifications.
package checklog

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventVersion is the current check event schema version.
const EventVersion = 1

// Event is one check-history record.
type Event struct {
	Version     int    `json:"v"`
	TimestampMs int64  `json:"ts_ms"`
	EventID     string `json:"event_id"`
	Type        string `json:"type"`

	Present     *bool   `json:"present,omitempty"`
	Confidence  string  `json:"confidence,omitempty"`
	Description string  `json:"description,omitempty"`
	Error       string  `json:"error,omitempty"`
	LatencyMs   float64 `json:"latency_ms,omitempty"`
	Count       int     `json:"count,omitempty"`
}

// Event type constants.
const (
	TypeWindowStarted    = "window_started"
	TypeWindowSkipped    = "window_skipped"
	TypeWindowEnded      = "window_ended"
	TypeCheckStarted     = "check_started"
	TypeCaptureFailed    = "capture_failed"
	TypeClassifyFailed   = "classify_failed"
	TypeVerdict          = "verdict"
	TypeAlertSent        = "alert_sent"
	TypeConfirmationSent = "confirmation_sent"
	TypeTestNotification = "test_notification"
	TypeScheduleDropped  = "schedule_dropped"
	TypeCheckPanic       = "check_panic"
)

// NewEvent creates an event with identity and timestamp defaults.
func NewEvent(eventType string) Event {
	return Event{
		Version:     EventVersion,
		TimestampMs: time.Now().UnixMilli(),
		EventID:     generateEventID(),
		Type:        eventType,
	}
}

// WithPresent records the verdict's presence flag.
func (e Event) WithPresent(present bool) Event {
	e.Present = &present
	return e
}

// WithConfidence records the verdict confidence.
func (e Event) WithConfidence(confidence string) Event {
	e.Confidence = confidence
	return e
}

// WithDescription records the verdict description.
func (e Event) WithDescription(description string) Event {
	e.Description = description
	return e
}

// WithError records a failure detail.
func (e Event) WithError(err string) Event {
	e.Error = err
	return e
}

// WithLatency records the operation latency in milliseconds.
func (e Event) WithLatency(latencyMs float64) Event {
	e.LatencyMs = latencyMs
	return e
}

// WithCount records a count, e.g. checks scheduled for a window.
func (e Event) WithCount(count int) Event {
	e.Count = count
	return e
}

// generateEventID returns a chk- prefixed 8-hex identifier.
func generateEventID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		n := time.Now().UnixNano()
		buf[0] = byte(n)
		buf[1] = byte(n >> 8)
		buf[2] = byte(n >> 16)
		buf[3] = byte(n >> 24)
	}
	return "chk-" + hex.EncodeToString(buf)
}

// Log writes events to checks.jsonl under the configured directory. A nil
// *Log discards events, so callers don't guard every call site.
type Log struct {
	path string
	mu   sync.Mutex
}

// New returns a Log writing under logDir. An empty dir disables logging.
func New(logDir string) *Log {
	if logDir == "" {
		return nil
	}
	return &Log{path: filepath.Join(logDir, "checks.jsonl")}
}

// Log appends one event.
func (l *Log) Log(event Event) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Version == 0 {
		event.Version = EventVersion
	}
	if event.TimestampMs == 0 {
		event.TimestampMs = time.Now().UnixMilli()
	}
	if event.EventID == "" {
		event.EventID = generateEventID()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return err
	}

	return nil
}
