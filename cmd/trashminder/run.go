package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/norm/trashminder/internal/admin"
	"github.com/norm/trashminder/internal/checklog"
	"github.com/norm/trashminder/internal/config"
	"github.com/norm/trashminder/internal/hass"
	"github.com/norm/trashminder/internal/logger"
	"github.com/norm/trashminder/internal/metrics"
	"github.com/norm/trashminder/internal/monitor"
	"github.com/norm/trashminder/internal/pushover"
	"github.com/norm/trashminder/internal/schedule"
	"github.com/norm/trashminder/internal/vision"
	"github.com/norm/trashminder/internal/window"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath)
		},
	}
}

// pipeline is one generation of the wired daemon: everything that is
// rebuilt when the configuration changes. Presence, detection-cycle, and
// metrics state live outside it and survive reloads.
type pipeline struct {
	cfg   *config.Config
	win   window.Window
	sched *schedule.Scheduler
	mon   *monitor.Monitor
	srv   *admin.Server
}

// sharedState survives config reloads so counters and the presence
// mirror do not reset when the file changes mid-window.
type sharedState struct {
	presence *monitor.Presence
	cycle    *monitor.DetectionCycle
	metrics  *metrics.Metrics
}

func buildPipeline(cfg *config.Config, shared *sharedState) (*pipeline, error) {
	win, err := cfg.Window()
	if err != nil {
		return nil, err
	}

	ha, err := hass.New(hass.Config{
		BaseURL:        cfg.HomeAssistant.BaseURL,
		Token:          cfg.HomeAssistant.Token,
		CameraEntity:   cfg.CameraEntity,
		PresenceEntity: cfg.PresenceEntity,
		Timeout:        time.Duration(cfg.HomeAssistant.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	classifier, err := vision.New(&vision.Config{
		Model:          cfg.Anthropic.Model,
		MaxTokens:      cfg.Anthropic.MaxTokens,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		APIKey:         cfg.Anthropic.APIKey,
	})
	if err != nil {
		return nil, err
	}

	notifier, err := pushover.New(pushover.Config{
		Token:   cfg.Pushover.Token,
		UserKey: cfg.Pushover.UserKey,
		Retry:   time.Duration(cfg.Pushover.RetrySeconds) * time.Second,
		Expire:  time.Duration(cfg.Pushover.ExpireSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	events := checklog.New(cfg.CheckLogDir)
	sched := schedule.New()

	orch := monitor.NewOrchestrator(monitor.OrchestratorParams{
		Camera:     ha,
		Classifier: classifier,
		Notifier:   notifier,
		Store:      ha,
		Cycle:      shared.cycle,
		Presence:   shared.presence,
		Events:     events,
		Metrics:    shared.metrics,
		Log:        logger.Named("check"),
		TestMode:   cfg.TestMode,
	})

	mon := monitor.New(monitor.MonitorParams{
		Window:   win,
		Sched:    sched,
		Jitter:   schedule.NewJitter(cfg.JitterSpread(), nil),
		Orch:     orch,
		Cycle:    shared.cycle,
		Presence: shared.presence,
		Store:    ha,
		Events:   events,
		Metrics:  shared.metrics,
		Log:      logger.Named("monitor"),
		TestMode: cfg.TestMode,
	})

	p := &pipeline{cfg: cfg, win: win, sched: sched, mon: mon}
	if cfg.Admin.Enabled {
		p.srv = admin.New(admin.Params{
			Addr:     cfg.Admin.ListenAddr,
			Presence: shared.presence,
			Cycle:    shared.cycle,
			Sched:    sched,
			Metrics:  shared.metrics,
			Window:   win,
			TestMode: cfg.TestMode,
		})
	}
	return p, nil
}

func runDaemon(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logger.Named("daemon")

	startup := log.Info()
	for key, val := range cfg.Redacted() {
		startup = startup.Str(key, val)
	}
	startup.Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shared := &sharedState{
		presence: monitor.NewPresence(),
		cycle:    monitor.NewDetectionCycle(),
		metrics:  metrics.New(),
	}

	var reloads <-chan struct{}
	if path != "" {
		watcher, err := config.NewWatcher(path)
		if err != nil {
			return err
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Start(ctx); err != nil {
				log.Error().Err(err).Msg("config watcher stopped")
			}
		}()
		reloads = watcher.Events()
	}

	for {
		p, err := buildPipeline(cfg, shared)
		if err != nil {
			return err
		}

		genCtx, cancelGen := context.WithCancel(ctx)

		if p.srv != nil {
			go func() {
				if err := p.srv.Start(genCtx); err != nil {
					log.Error().Err(err).Msg("admin server stopped")
				}
			}()
		}
		if err := p.mon.Start(genCtx); err != nil {
			cancelGen()
			p.sched.Stop()
			return err
		}

		rebuild := false
		for !rebuild {
			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				cancelGen()
				p.sched.Stop()
				return nil

			case _, ok := <-reloads:
				if !ok {
					// Watcher closed on shutdown; a nil channel blocks, so
					// only the signal path remains.
					reloads = nil
					continue
				}

				next, err := config.Load(path)
				if err != nil {
					// A broken edit must not take the daemon down. Keep the
					// current pipeline running on the last good config.
					log.Error().Err(err).Msg("config reload rejected, keeping previous configuration")
					continue
				}

				log.Info().Msg("config changed, rebuilding pipeline")
				cancelGen()
				p.sched.Stop()
				cfg = next
				rebuild = true
			}
		}
	}
}
