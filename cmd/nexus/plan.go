package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/Rick1330/Nexus-Framework/internal/engine"
)

var (
	planOutput    string
	planNoJournal bool
	planDepends   []string
)

var planCmd = &cobra.Command{
	Use:   "plan <requirements.yaml>",
	Short: "Show the plan and strategy for a goal without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "table", "Output format: table or yaml")
	planCmd.Flags().BoolVar(&planNoJournal, "no-journal", false, "Do not record the plan in the project journal")
	planCmd.Flags().StringArrayVar(&planDepends, "depends", nil, "Override a task's dependencies as task=dep1,dep2 (repeatable)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planOutput != "table" && planOutput != "yaml" {
		return fmt.Errorf("unknown output format %q (want table or yaml)", planOutput)
	}
	req, err := loadRequirements(args[0])
	if err != nil {
		return err
	}

	s, err := openSession(sessionOptions{journal: !planNoJournal})
	if err != nil {
		return err
	}
	defer s.close()
	defer shutdown(s.engine)

	sub, err := s.engine.Prepare(req.Requirements)
	if err != nil {
		return err
	}
	if len(planDepends) > 0 {
		if sub, err = applyDependencyEdits(s.engine, sub, planDepends); err != nil {
			return err
		}
	}

	if planOutput == "yaml" {
		return writeSubmissionYAML(sub)
	}
	fmt.Print(renderSubmission(sub))
	return nil
}

// parseDependencyEdit splits "task_3=task_1,task_2" into the task id and its
// new dependencies. An empty right-hand side clears them.
func parseDependencyEdit(s string) (string, []string, error) {
	taskID, list, ok := strings.Cut(s, "=")
	taskID = strings.TrimSpace(taskID)
	if !ok || taskID == "" {
		return "", nil, fmt.Errorf("invalid --depends %q (want task=dep1,dep2)", s)
	}
	var deps []string
	for _, d := range strings.Split(list, ",") {
		if d = strings.TrimSpace(d); d != "" {
			deps = append(deps, d)
		}
	}
	return taskID, deps, nil
}

// applyDependencyEdits rewires the prepared plan and formulates a fresh
// strategy for it.
func applyDependencyEdits(e *engine.Engine, sub *engine.Submission, edits []string) (*engine.Submission, error) {
	for _, edit := range edits {
		taskID, deps, err := parseDependencyEdit(edit)
		if err != nil {
			return nil, err
		}
		if err := e.SetTaskDependencies(sub.Plan.ID, taskID, deps); err != nil {
			return nil, err
		}
	}
	st, err := e.FormulateStrategy(sub.Plan.ID)
	if err != nil {
		return nil, err
	}
	plan, err := e.Plan(sub.Plan.ID)
	if err != nil {
		return nil, err
	}
	return &engine.Submission{Goal: sub.Goal, Plan: plan, Strategy: st}, nil
}

func writeSubmissionYAML(sub *engine.Submission) error {
	doc := struct {
		Goal     any `yaml:"goal"`
		Plan     any `yaml:"plan"`
		Strategy any `yaml:"strategy"`
	}{sub.Goal, sub.Plan, sub.Strategy}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	criticalCell = cellStyle.Foreground(lipgloss.Color("214"))
)

// renderSubmission lays out the goal, the task table and the strategy.
func renderSubmission(sub *engine.Submission) string {
	st := sub.Strategy
	level := make(map[string]int)
	for i, ids := range st.Levels {
		for _, id := range ids {
			level[id] = i
		}
	}
	resource := make(map[string]string)
	for r, ids := range st.ResourceAllocation {
		for _, id := range ids {
			resource[id] = r
		}
	}

	rows := make([][]string, 0, len(sub.Plan.Tasks))
	critical := make(map[int]bool)
	for i, t := range sub.Plan.Tasks {
		fb, _ := st.Fallback(t.ID)
		retry := "no"
		if fb.Retry {
			retry = fmt.Sprintf("x%d", fb.MaxRetries)
		}
		rows = append(rows, []string{
			t.ID,
			t.Title,
			strings.Join(t.DependsOn, ","),
			fmt.Sprint(level[t.ID]),
			string(t.EstimatedEffort),
			fmt.Sprint(st.Timeline.TaskDurations[t.ID]),
			resource[t.ID],
			retry,
		})
		if slices.Contains(st.Timeline.CriticalPath, t.ID) {
			critical[i] = true
		}
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "DEPENDS ON", "LEVEL", "EFFORT", "DAYS", "RESOURCE", "RETRY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case critical[row]:
				return criticalCell
			default:
				return cellStyle
			}
		})

	var b strings.Builder
	b.WriteString(headingStyle.Render("Goal: "+sub.Goal.Title) + "\n")
	fmt.Fprintf(&b, "Priority %s, plan %s, strategy %s\n", sub.Goal.Priority, sub.Plan.ID, st.ID)
	b.WriteString(tbl.String() + "\n")

	b.WriteString(headingStyle.Render("Execution levels") + "\n")
	for i, ids := range st.Levels {
		fmt.Fprintf(&b, "  %d: %s\n", i, strings.Join(ids, ", "))
	}
	b.WriteString(headingStyle.Render("Timeline") + "\n")
	fmt.Fprintf(&b, "  ~%d days, critical path %s\n", st.Timeline.EstimatedDays, strings.Join(st.Timeline.CriticalPath, " -> "))
	return b.String()
}
