package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rick1330/Nexus-Framework/internal/signals"
)

var signalCmd = &cobra.Command{
	Use:   "signal <pause|resume|cancel> [plan-id]",
	Short: "Steer a running workflow",
	Long: `Send a control signal to the 'nexus run' active in this project.

pause stops new tasks from being dispatched; running tasks finish.
resume continues dispatching. cancel stops the plan, defaulting to the
plan the run was started with.`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"pause", "resume", "cancel"},
	RunE: func(cmd *cobra.Command, args []string) error {
		sig, err := signals.Parse(args[0])
		if err != nil {
			return err
		}
		var planID string
		if len(args) == 2 {
			if sig != signals.Cancel {
				return fmt.Errorf("%s does not take a plan id", sig)
			}
			planID = args[1]
		}
		dir, err := resolveProjectDir()
		if err != nil {
			return err
		}
		if err := signals.Send(dir, sig, planID); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Sent %s", sig), colorOK)
		return nil
	},
}
