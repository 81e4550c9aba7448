// Command trashminder monitors a driveway camera for the trash bin on
// collection night and nags until the bin is out.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "trashminder",
		Short:         "Trash bin monitoring daemon",
		Long:          "trashminder watches a camera during a weekly monitoring window, classifies snapshots with a vision model, and sends reminders until the trash bin is out at the curb.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newPlanCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
