package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rick1330/Nexus-Framework/internal/state"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

var statusPurge time.Duration

var statusCmd = &cobra.Command{
	Use:   "status [plan-id]",
	Short: "Show recorded plans and executions",
	Long: `Display plans recorded in the project journal.

With a plan id, shows that plan's tasks and every execution recorded
for it, oldest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusPurge, "purge-older-than", 0, "Delete journal entries not updated within this duration")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.State.Path
	if path == "" {
		path = state.ProjectDBPath(dir)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No journal yet. Run 'nexus run <requirements.yaml>' to start.")
		return nil
	}

	db, err := openJournal(cfg, dir)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer db.Close()

	if statusPurge > 0 {
		n, err := db.PurgeBefore(time.Now().Add(-statusPurge))
		if err != nil {
			return fmt.Errorf("purge journal: %w", err)
		}
		fmt.Printf("Purged %d entries\n", n)
	}

	if len(args) == 1 {
		return displayPlan(db, args[0])
	}
	return displayPlans(db)
}

func displayPlans(db *state.DB) error {
	plans, err := db.ListPlans()
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}
	if len(plans) == 0 {
		fmt.Println("No plans recorded.")
		return nil
	}

	fmt.Println("Plans:")
	for _, p := range plans {
		adapted := ""
		if p.AdaptedFrom != "" {
			adapted = " adapted from " + p.AdaptedFrom
		}
		fmt.Printf("  %s: %s %3.0f%% of %d tasks (%s ago)%s\n",
			p.ID, colorStatus(string(p.Status)), p.Percent, p.TaskCount, sinceRecorded(p.UpdatedAt), adapted)
	}
	return nil
}

func displayPlan(db *state.DB, planID string) error {
	plan, err := db.GetPlan(planID)
	if err != nil {
		return fmt.Errorf("get plan: %w", err)
	}
	progress := plan.Progress()
	fmt.Printf("Plan %s (goal %s)\n", plan.ID, plan.GoalID)
	fmt.Printf("  Status: %s\n", colorStatus(string(plan.Status)))
	fmt.Printf("  Progress: %d/%d completed, %d skipped, %d failed\n",
		progress.Completed, progress.Total, progress.Skipped, progress.Failed)
	if plan.AdaptationReason != "" {
		fmt.Printf("  Adapted: %s\n", plan.AdaptationReason)
	}

	fmt.Println()
	fmt.Println("Tasks:")
	for _, t := range plan.Tasks {
		line := fmt.Sprintf("  %s: %q %s", t.ID, t.Title, colorStatus(string(t.Status)))
		if t.RetryCount > 0 {
			line += fmt.Sprintf(" (%d retries)", t.RetryCount)
		}
		if t.Error != "" {
			line += " - " + t.Error
		}
		fmt.Println(line)
	}

	execs, err := db.ListExecutions(planID)
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}
	if len(execs) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Println("Executions:")
	for _, e := range execs {
		target := e.TargetID
		if e.Kind == models.ExecutionKindTask {
			target = fmt.Sprintf("%s #%d on %s", e.TargetID, e.Attempt, e.AgentID)
		}
		line := fmt.Sprintf("  %s %-8s %s %s", e.ID, e.Kind, target, colorStatus(string(e.Status)))
		if e.ErrorInfo != nil {
			line += fmt.Sprintf(" [%s] %s", e.ErrorInfo.Kind, e.ErrorInfo.Message)
		}
		fmt.Println(line)
	}
	return nil
}

func colorStatus(s string) string {
	switch s {
	case "completed":
		return color.GreenString(s)
	case "failed":
		return color.RedString(s)
	case "in_progress", "running", "executing":
		return color.CyanString(s)
	case "skipped", "adapted":
		return color.YellowString(s)
	default:
		return s
	}
}

func sinceRecorded(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return formatDuration(time.Since(t))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		if m := int(d.Minutes()) % 60; m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
