// Package admin serves the operational HTTP surface: health, status, and
// Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/norm/trashminder/internal/logger"
	"github.com/norm/trashminder/internal/metrics"
	"github.com/norm/trashminder/internal/monitor"
	"github.com/norm/trashminder/internal/window"
)

const shutdownGrace = 5 * time.Second

// Pender reports how many scheduled tasks are waiting to fire.
type Pender interface {
	Pending() int
}

// Server exposes daemon state over HTTP.
type Server struct {
	addr     string
	presence *monitor.Presence
	cycle    *monitor.DetectionCycle
	sched    Pender
	metrics  *metrics.Metrics
	win      window.Window
	testMode bool
	started  time.Time
	log      zerolog.Logger
}

// Params collects the Server dependencies.
type Params struct {
	Addr     string
	Presence *monitor.Presence
	Cycle    *monitor.DetectionCycle
	Sched    Pender
	Metrics  *metrics.Metrics
	Window   window.Window
	TestMode bool
}

func New(p Params) *Server {
	return &Server{
		addr:     p.Addr,
		presence: p.Presence,
		cycle:    p.Cycle,
		sched:    p.Sched,
		metrics:  p.Metrics,
		win:      p.Window,
		testMode: p.TestMode,
		started:  time.Now(),
		log:      logger.Named("admin"),
	}
}

// Router builds the HTTP routes. Exposed for tests.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	s.log.Info().Str("addr", s.addr).Msg("admin server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

type statusResponse struct {
	Presence     presenceStatus `json:"presence"`
	Window       windowStatus   `json:"window"`
	WindowActive bool           `json:"window_active"`
	TestMode     bool           `json:"test_mode"`
	PendingTasks int            `json:"pending_tasks"`
	UptimeSecs   int64          `json:"uptime_seconds"`
}

type presenceStatus struct {
	Present     bool   `json:"present"`
	Confidence  string `json:"confidence,omitempty"`
	Description string `json:"description"`
	LastChecked string `json:"last_checked,omitempty"`
	Phase       string `json:"phase"`
}

type windowStatus struct {
	StartDay  string `json:"start_day"`
	StartTime string `json:"start_time"`
	EndDay    string `json:"end_day"`
	EndTime   string `json:"end_time"`
	Hours     int    `json:"hours"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.presence.Snapshot()

	resp := statusResponse{
		Presence: presenceStatus{
			Present:     snap.Present,
			Confidence:  string(snap.Confidence),
			Description: snap.Description,
			Phase:       string(snap.Phase),
		},
		Window: windowStatus{
			StartDay:  s.win.StartDay.String(),
			StartTime: s.win.StartTime.String(),
			EndDay:    s.win.EndDay.String(),
			EndTime:   s.win.EndTime.String(),
			Hours:     s.win.TotalHours(),
		},
		WindowActive: s.cycle.Active(),
		TestMode:     s.testMode,
		PendingTasks: s.sched.Pending(),
		UptimeSecs:   int64(time.Since(s.started).Seconds()),
	}
	if !snap.LastChecked.IsZero() {
		resp.Presence.LastChecked = snap.LastChecked.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("encode status response")
	}
}
