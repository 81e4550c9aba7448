package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/norm/trashminder/internal/checklog"
	"github.com/norm/trashminder/internal/metrics"
	"github.com/norm/trashminder/internal/schedule"
	"github.com/norm/trashminder/internal/window"
)

// Test mode check cadence: first check shortly after startup, then a
// fixed short period, bypassing the windowed plan.
const (
	testModeInitialDelay = 10 * time.Second
	testModePeriod       = time.Minute
)

// Registrar is the scheduler surface the monitor needs. Satisfied by
// *schedule.Scheduler; tests substitute a recording fake.
type Registrar interface {
	RegisterOnce(delay time.Duration, task func()) error
	RegisterWeekly(day window.Weekday, at window.TimeOfDay, task func()) error
	RegisterEvery(initial, period time.Duration, task func()) error
}

// Monitor owns the window lifecycle: the weekly recurrence, per-cycle
// planning and registration, and the end-of-window reset.
type Monitor struct {
	win      window.Window
	sched    Registrar
	jitter   *schedule.Jitter
	orch     *Orchestrator
	cycle    *DetectionCycle
	presence *Presence
	store    PresenceStore

	events  *checklog.Log
	metrics *metrics.Metrics
	log     zerolog.Logger

	testMode bool
	now      func() time.Time
}

// MonitorParams collects the monitor's dependencies.
type MonitorParams struct {
	Window   window.Window
	Sched    Registrar
	Jitter   *schedule.Jitter
	Orch     *Orchestrator
	Cycle    *DetectionCycle
	Presence *Presence
	Store    PresenceStore
	Events   *checklog.Log
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
	TestMode bool
	Now      func() time.Time
}

// New wires a Monitor.
func New(p MonitorParams) *Monitor {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Metrics == nil {
		p.Metrics = metrics.New()
	}
	return &Monitor{
		win:      p.Window,
		sched:    p.Sched,
		jitter:   p.Jitter,
		orch:     p.Orch,
		cycle:    p.Cycle,
		presence: p.Presence,
		store:    p.Store,
		events:   p.Events,
		metrics:  p.Metrics,
		log:      p.Log,
		testMode: p.TestMode,
		now:      p.Now,
	}
}

// Start publishes the initial neutral presence state and registers either
// the weekly recurrence or, in test mode, the fixed-period check loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.publish(ctx, m.presence.Snapshot())

	if m.testMode {
		m.log.Info().
			Dur("period", testModePeriod).
			Msg("test mode: fixed-period checks, window plan bypassed")
		return m.sched.RegisterEvery(testModeInitialDelay, testModePeriod, func() {
			m.orch.RunCheck(ctx)
		})
	}

	m.log.Info().
		Str("start", m.win.StartDay.String()+" "+m.win.StartTime.String()).
		Str("end", m.win.EndDay.String()+" "+m.win.EndTime.String()).
		Msg("weekly monitoring schedule registered")
	return m.sched.RegisterWeekly(m.win.StartDay, m.win.StartTime, func() {
		m.StartCycle(ctx)
	})
}

// StartCycle begins one monitoring window: verifies the day, re-arms the
// detection cycle, and registers the jittered checks plus the end reset.
func (m *Monitor) StartCycle(ctx context.Context) {
	now := m.now()

	plan, err := m.win.Plan(now)
	if errors.Is(err, window.ErrWrongDay) {
		// The recurrence fired on the wrong day; upstream day constraints
		// are not trusted. Skip with zero side effects.
		m.log.Warn().
			Str("today", window.WeekdayOf(now).String()).
			Str("configured", m.win.StartDay.String()).
			Msg("skipping cycle, not the configured start day")
		_ = m.events.Log(checklog.NewEvent(checklog.TypeWindowSkipped))
		return
	}
	if err != nil {
		m.log.Error().Err(err).Msg("window planning failed")
		return
	}

	m.cycle.Begin()
	m.metrics.WindowActive.Store(1)
	m.publish(ctx, PresenceSnapshot{
		Phase:       PhaseIdle,
		Description: "Monitoring started",
		LastChecked: now,
	})

	scheduled := 0
	for _, off := range plan.Offsets {
		delay := m.jitter.Apply(time.Duration(off) * time.Second)
		if err := m.sched.RegisterOnce(delay, func() { m.orch.RunCheck(ctx) }); err != nil {
			// One missed check is not fatal; keep registering the rest.
			m.metrics.ChecksDropped.Add(1)
			m.log.Warn().Err(err).Dur("offset", delay).Msg("dropping check registration")
			_ = m.events.Log(checklog.NewEvent(checklog.TypeScheduleDropped).WithError(err.Error()))
			continue
		}
		scheduled++
	}

	if err := m.sched.RegisterOnce(time.Duration(plan.TotalSeconds)*time.Second, func() { m.EndCycle(ctx) }); err != nil {
		m.log.Error().Err(err).Msg("window-end registration failed")
	}

	m.log.Info().
		Int("checks", scheduled).
		Int("window_seconds", plan.TotalSeconds).
		Msg("monitoring cycle started")
	_ = m.events.Log(checklog.NewEvent(checklog.TypeWindowStarted).WithCount(scheduled))
}

// EndCycle fires when the window is over: the detection cycle goes
// inactive (its flag resets on the next Begin) and the presence mirror is
// force-set to the designed between-cycles terminal state.
func (m *Monitor) EndCycle(ctx context.Context) {
	m.cycle.End()
	m.metrics.WindowActive.Store(0)
	m.metrics.BinPresent.Store(0)

	m.publish(ctx, PresenceSnapshot{
		Present:     false,
		Confidence:  ConfidenceNone,
		Description: "Monitoring window ended",
		LastChecked: m.now(),
		Phase:       PhaseEnded,
	})

	m.log.Info().Msg("monitoring window ended, presence reset")
	_ = m.events.Log(checklog.NewEvent(checklog.TypeWindowEnded))
}

func (m *Monitor) publish(ctx context.Context, snap PresenceSnapshot) {
	m.presence.Set(snap)
	if m.store == nil {
		return
	}
	if err := m.store.SetPresence(ctx, snap); err != nil {
		m.log.Warn().Err(err).Msg("presence store update failed")
	}
}
