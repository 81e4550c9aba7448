package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/norm/trashminder/internal/config"
	"github.com/norm/trashminder/internal/hass"
	"github.com/norm/trashminder/internal/logger"
	"github.com/norm/trashminder/internal/monitor"
	"github.com/norm/trashminder/internal/pushover"
	"github.com/norm/trashminder/internal/vision"
)

// printNotifier prints notifications instead of delivering them, for
// dry-run checks.
type printNotifier struct{}

func (printNotifier) Notify(ctx context.Context, n monitor.Notification) error {
	fmt.Fprintf(os.Stderr, "--- notification (not sent) ---\n%s\n\n%s\n\n", n.Title, n.Message)
	return nil
}

// newCheckCmd runs a single capture-and-classify check immediately,
// outside any monitoring window. Useful for validating credentials and
// camera placement.
func newCheckCmd() *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check now and print the verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

			ha, err := hass.New(hass.Config{
				BaseURL:        cfg.HomeAssistant.BaseURL,
				Token:          cfg.HomeAssistant.Token,
				CameraEntity:   cfg.CameraEntity,
				PresenceEntity: cfg.PresenceEntity,
				Timeout:        time.Duration(cfg.HomeAssistant.TimeoutSeconds) * time.Second,
			})
			if err != nil {
				return err
			}

			classifier, err := vision.New(&vision.Config{
				Model:          cfg.Anthropic.Model,
				MaxTokens:      cfg.Anthropic.MaxTokens,
				MaxRetries:     3,
				RetryBaseDelay: time.Second,
				APIKey:         cfg.Anthropic.APIKey,
			})
			if err != nil {
				return err
			}

			// A manual check does not page anyone unless asked to.
			var notifier monitor.Notifier = printNotifier{}
			if notify {
				notifier, err = pushover.New(pushover.Config{
					Token:   cfg.Pushover.Token,
					UserKey: cfg.Pushover.UserKey,
					Retry:   time.Duration(cfg.Pushover.RetrySeconds) * time.Second,
					Expire:  time.Duration(cfg.Pushover.ExpireSeconds) * time.Second,
				})
				if err != nil {
					return err
				}
			}

			presence := monitor.NewPresence()
			cycle := monitor.NewDetectionCycle()
			cycle.Begin()

			orch := monitor.NewOrchestrator(monitor.OrchestratorParams{
				Camera:     ha,
				Classifier: classifier,
				Notifier:   notifier,
				Store:      ha,
				Cycle:      cycle,
				Presence:   presence,
				Log:        logger.Named("check"),
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			orch.RunCheck(ctx)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(presence.Snapshot())
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "deliver real notifications for this check")
	return cmd
}
