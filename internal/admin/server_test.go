package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/norm/trashminder/internal/metrics"
	"github.com/norm/trashminder/internal/monitor"
	"github.com/norm/trashminder/internal/window"
)

type stubPender struct{ n int }

func (s stubPender) Pending() int { return s.n }

func testWindow() window.Window {
	return window.Window{
		StartDay:  window.Wednesday,
		StartTime: window.TimeOfDay{Hour: 15},
		EndDay:    window.Thursday,
		EndTime:   window.TimeOfDay{Hour: 9},
	}
}

func newTestServer(t *testing.T) (*Server, *monitor.Presence, *monitor.DetectionCycle) {
	t.Helper()
	presence := monitor.NewPresence()
	cycle := &monitor.DetectionCycle{}

	s := New(Params{
		Addr:     ":0",
		Presence: presence,
		Cycle:    cycle,
		Sched:    stubPender{n: 4},
		Metrics:  metrics.New(),
		Window:   testWindow(),
	})
	return s, presence, cycle
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	s, presence, cycle := newTestServer(t)

	cycle.Begin()
	presence.Set(monitor.PresenceSnapshot{
		Present:     true,
		Confidence:  monitor.ConfidenceHigh,
		Description: "bin at curb",
		LastChecked: time.Date(2025, 1, 8, 16, 30, 0, 0, time.UTC),
		Phase:       monitor.PhaseChecked,
	})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !resp.Presence.Present || resp.Presence.Confidence != "high" {
		t.Errorf("presence not mirrored: %+v", resp.Presence)
	}
	if resp.Presence.LastChecked == "" {
		t.Errorf("last_checked should be set after a check")
	}
	if !resp.WindowActive {
		t.Errorf("expected active window")
	}
	if resp.PendingTasks != 4 {
		t.Errorf("expected 4 pending tasks, got %d", resp.PendingTasks)
	}
	if resp.Window.StartDay != "wed" || resp.Window.Hours != 18 {
		t.Errorf("window config not mirrored: %+v", resp.Window)
	}
}

func TestStatusBeforeFirstCheck(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if resp.Presence.Phase != "idle" {
		t.Errorf("expected idle phase, got %q", resp.Presence.Phase)
	}
	if resp.Presence.LastChecked != "" {
		t.Errorf("no last_checked expected before the first check")
	}
	if resp.WindowActive {
		t.Errorf("window should be inactive at startup")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body == "" {
		t.Fatalf("expected scrape output")
	}
}
