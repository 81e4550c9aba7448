package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/norm/trashminder/internal/config"
	"github.com/norm/trashminder/internal/window"
)

// newPlanCmd prints the check schedule a window starting at a given
// instant would produce, without running anything.
func newPlanCmd() *cobra.Command {
	var nowFlag string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the check schedule for the configured window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			win, err := cfg.Window()
			if err != nil {
				return err
			}

			now := time.Now()
			if nowFlag != "" {
				now, err = time.Parse(time.RFC3339, nowFlag)
				if err != nil {
					return fmt.Errorf("parse --now: %w", err)
				}
			}

			plan, err := win.Plan(now)
			if errors.Is(err, window.ErrWrongDay) {
				fmt.Printf("%s is a %s; the window starts on %s — no checks would be scheduled\n",
					now.Format(time.RFC3339), window.WeekdayOf(now), win.StartDay)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("window: %s %s -> %s %s (%dh)\n",
				win.StartDay, win.StartTime, win.EndDay, win.EndTime, win.TotalHours())
			fmt.Printf("checks: %d, window end after %s\n",
				len(plan.Offsets), time.Duration(plan.TotalSeconds)*time.Second)
			for _, off := range plan.Offsets {
				at := now.Add(time.Duration(off) * time.Second)
				fmt.Printf("  +%6ds  %s\n", off, at.Format("Mon 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "simulate the window starting at this RFC3339 instant")
	return cmd
}
