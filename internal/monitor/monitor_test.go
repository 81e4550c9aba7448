package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/norm/trashminder/internal/schedule"
	"github.com/norm/trashminder/internal/window"
)

type onceReg struct {
	delay time.Duration
	task  func()
}

type fakeRegistrar struct {
	onces   []onceReg
	weekly  int
	every   int
	failOn  map[int]bool // index of RegisterOnce call to fail
	onceSeq int
}

func (f *fakeRegistrar) RegisterOnce(delay time.Duration, task func()) error {
	idx := f.onceSeq
	f.onceSeq++
	if f.failOn[idx] {
		return schedule.ErrSchedulerClosed
	}
	f.onces = append(f.onces, onceReg{delay: delay, task: task})
	return nil
}

func (f *fakeRegistrar) RegisterWeekly(day window.Weekday, at window.TimeOfDay, task func()) error {
	f.weekly++
	return nil
}

func (f *fakeRegistrar) RegisterEvery(initial, period time.Duration, task func()) error {
	f.every++
	return nil
}

func testWindow(t *testing.T) window.Window {
	t.Helper()
	sd, _ := window.ParseWeekday("wed")
	ed, _ := window.ParseWeekday("thu")
	st, _ := window.ParseTimeOfDay("15:00:00")
	et, _ := window.ParseTimeOfDay("09:00:00")
	return window.Window{StartDay: sd, StartTime: st, EndDay: ed, EndTime: et}
}

func newMonitorHarness(t *testing.T, reg *fakeRegistrar, now time.Time) (*Monitor, *harness) {
	t.Helper()
	h := newHarness(t, false)
	// newHarness arms the cycle for the orchestrator tests; monitor tests
	// start from the inactive state StartCycle expects.
	h.cycle.End()
	m := New(MonitorParams{
		Window:   testWindow(t),
		Sched:    reg,
		Jitter:   schedule.NewJitter(0, nil),
		Orch:     h.orch,
		Cycle:    h.cycle,
		Presence: h.presence,
		Store:    h.store,
		Log:      zerolog.Nop(),
		Now:      func() time.Time { return now },
	})
	return m, h
}

func TestStartCycleRegistersChecksAndEndReset(t *testing.T) {
	reg := &fakeRegistrar{}
	wednesday := time.Date(2025, 1, 8, 15, 0, 0, 0, time.UTC)
	m, h := newMonitorHarness(t, reg, wednesday)

	m.StartCycle(context.Background())

	// 18 hourly checks plus the window-end reset.
	if len(reg.onces) != 19 {
		t.Fatalf("expected 19 registrations, got %d", len(reg.onces))
	}
	if last := reg.onces[len(reg.onces)-1]; last.delay != 18*time.Hour {
		t.Fatalf("window-end reset should fire after 18h, got %s", last.delay)
	}
	if !h.cycle.Active() {
		t.Fatalf("cycle should be active after StartCycle")
	}

	snap, ok := h.store.last()
	if !ok || snap.Description != "Monitoring started" {
		t.Fatalf("presence should be reset at cycle start, got %+v", snap)
	}
}

func TestStartCycleWrongDayHasNoSideEffects(t *testing.T) {
	reg := &fakeRegistrar{}
	thursday := time.Date(2025, 1, 9, 15, 0, 0, 0, time.UTC)
	m, h := newMonitorHarness(t, reg, thursday)

	m.StartCycle(context.Background())

	if len(reg.onces) != 0 {
		t.Fatalf("wrong day must register nothing, got %d", len(reg.onces))
	}
	if h.cycle.Active() {
		t.Fatalf("cycle must not begin on the wrong day")
	}
	if _, ok := h.store.last(); ok {
		t.Fatalf("presence must not change on the wrong day")
	}
}

func TestStartCycleDroppedRegistrationContinues(t *testing.T) {
	reg := &fakeRegistrar{failOn: map[int]bool{3: true, 7: true}}
	wednesday := time.Date(2025, 1, 8, 15, 0, 0, 0, time.UTC)
	m, _ := newMonitorHarness(t, reg, wednesday)

	m.StartCycle(context.Background())

	// Two checks dropped, sixteen checks plus the end reset remain.
	if len(reg.onces) != 17 {
		t.Fatalf("expected 17 registrations after 2 drops, got %d", len(reg.onces))
	}
	if got := m.metrics.ChecksDropped.Load(); got != 2 {
		t.Fatalf("expected 2 dropped checks recorded, got %d", got)
	}
}

func TestEndCycleResetsPresenceAndCycle(t *testing.T) {
	reg := &fakeRegistrar{}
	wednesday := time.Date(2025, 1, 8, 15, 0, 0, 0, time.UTC)
	m, h := newMonitorHarness(t, reg, wednesday)

	m.StartCycle(context.Background())
	h.cycle.MarkFirstSuccessIfNeeded()

	m.EndCycle(context.Background())

	if h.cycle.Active() {
		t.Fatalf("cycle should be inactive after EndCycle")
	}
	snap, _ := h.store.last()
	if snap.Phase != PhaseEnded || snap.Present {
		t.Fatalf("presence should hold the ended terminal state, got %+v", snap)
	}
	if snap.Description != "Monitoring window ended" {
		t.Fatalf("ended state must be distinguishable, got %q", snap.Description)
	}
	if snap.Confidence != ConfidenceNone {
		t.Fatalf("ended state carries no confidence, got %q", snap.Confidence)
	}

	// Ready for a fresh cycle.
	h.cycle.Begin()
	if !h.cycle.MarkFirstSuccessIfNeeded() {
		t.Fatalf("next cycle should re-arm the first-success flag")
	}
}

func TestStartNormalModeRegistersWeekly(t *testing.T) {
	reg := &fakeRegistrar{}
	m, _ := newMonitorHarness(t, reg, time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if reg.weekly != 1 || reg.every != 0 {
		t.Fatalf("expected one weekly registration, got weekly=%d every=%d", reg.weekly, reg.every)
	}
}

func TestStartTestModeRegistersFixedPeriod(t *testing.T) {
	reg := &fakeRegistrar{}
	h := newHarness(t, true)
	m := New(MonitorParams{
		Window:   testWindow(t),
		Sched:    reg,
		Jitter:   schedule.NewJitter(0, nil),
		Orch:     h.orch,
		Cycle:    h.cycle,
		Presence: h.presence,
		Store:    h.store,
		Log:      zerolog.Nop(),
		TestMode: true,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if reg.every != 1 || reg.weekly != 0 {
		t.Fatalf("expected one fixed-period registration, got weekly=%d every=%d", reg.weekly, reg.every)
	}
}

func TestEndToEndWindowScenario(t *testing.T) {
	// Drive a whole cycle through the fake registrar: absent first, then
	// present twice. One alert, one confirmation, then silence.
	reg := &fakeRegistrar{}
	wednesday := time.Date(2025, 1, 8, 15, 0, 0, 0, time.UTC)
	m, h := newMonitorHarness(t, reg, wednesday)

	m.StartCycle(context.Background())

	h.classifier.verdict = Verdict{Present: false, Confidence: ConfidenceMedium, Description: "driveway empty"}
	reg.onces[0].task()

	h.classifier.verdict = Verdict{Present: true, Confidence: ConfidenceHigh, Description: "bin at curb"}
	reg.onces[1].task()
	reg.onces[2].task()

	sent := h.notifier.sentCopy()
	if len(sent) != 2 {
		t.Fatalf("expected alert + confirmation, got %d notifications", len(sent))
	}
	if sent[0].Priority != PriorityEmergency {
		t.Fatalf("first notification should be the alert")
	}
	if sent[1].Priority != PriorityLow {
		t.Fatalf("second notification should be the confirmation")
	}

	// Window-end reset is the last registered task.
	reg.onces[len(reg.onces)-1].task()
	if h.presence.Snapshot().Phase != PhaseEnded {
		t.Fatalf("presence should end in the terminal state")
	}
}
