package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rick1330/Nexus-Framework/internal/engine"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator"
	"github.com/Rick1330/Nexus-Framework/internal/signals"
	"github.com/Rick1330/Nexus-Framework/internal/tui"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

var (
	runTUI       bool
	runParams    []string
	runNoJournal bool
	runDebug     bool
	runReplan    bool
)

var runCmd = &cobra.Command{
	Use:   "run <requirements.yaml>",
	Short: "Plan and execute a goal",
	Long: `Interpret the requirements, decompose them into a plan, formulate a
strategy and execute it on the declared agents.

While the run is active it can be steered from another terminal with
'nexus signal pause|resume|cancel'. With --tui the run is shown in an
interactive view (p pauses, c cancels, q quits).`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the interactive workflow view")
	runCmd.Flags().StringArrayVarP(&runParams, "param", "p", nil, "Execution parameter as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "Do not record plans and executions in the project journal")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Write a debug log under .nexus/logs")
	runCmd.Flags().BoolVar(&runReplan, "replan", false, "Adapt the plan once and re-run the unfinished tasks if the run fails")
}

func runRun(cmd *cobra.Command, args []string) error {
	req, err := loadRequirements(args[0])
	if err != nil {
		return err
	}
	params, err := mergeParams(req.Params, runParams)
	if err != nil {
		return err
	}

	s, err := openSession(sessionOptions{journal: !runNoJournal, debugLog: runDebug})
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := s.engine.Prepare(req.Requirements)
	if err != nil {
		return err
	}

	agents, err := buildAgents(s.cfg, req.Agents, sub.Goal.RequiredCapabilities, s.projectDir)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if err := s.engine.RegisterAgent(a); err != nil {
			return err
		}
	}

	watcher, err := signals.NewWatcher(s.projectDir)
	if err != nil {
		return err
	}
	defer watcher.Close()
	go signals.Forward(ctx, watcher, s.engine, s.activePlan, func(n signals.Notice, err error) {
		fmt.Fprintf(os.Stderr, "signal %s: %v\n", n.Signal, err)
	})

	out, err := execute(ctx, s, sub, params)
	if err == nil && runReplan && !out.Succeeded() && ctx.Err() == nil {
		out, err = replan(ctx, s, out, params)
	}
	shutdown(s.engine)
	if err != nil {
		return err
	}

	printOutcome(out)
	if !out.Succeeded() {
		return fmt.Errorf("plan %s %s", out.Plan.ID, out.Plan.Status)
	}
	return nil
}

func execute(ctx context.Context, s *session, sub *engine.Submission, params map[string]string) (*engine.Outcome, error) {
	s.active.Store(sub.Plan.ID)
	if runTUI {
		return executeWithTUI(ctx, s, sub, params)
	}
	printSubmission(sub)
	return executeWithLog(ctx, s.engine, sub.Plan.ID, params)
}

// replan adapts a failed plan and executes the adapted version.
func replan(ctx context.Context, s *session, failed *engine.Outcome, params map[string]string) (*engine.Outcome, error) {
	reason := "run failed"
	if failed.ErrorInfo != nil {
		reason = failed.ErrorInfo.Message
	}
	plan, strat, err := s.engine.Replan(failed.Plan.ID, reason)
	if err != nil {
		return nil, fmt.Errorf("replan: %w", err)
	}
	goal, err := s.engine.Goal(plan.GoalID)
	if err != nil {
		return nil, err
	}
	color.Yellow("\nReplanning %s as %s\n", failed.Plan.ID, plan.ID)
	return execute(ctx, s, &engine.Submission{Goal: goal, Plan: plan, Strategy: strat}, params)
}

// mergeParams layers --param flags over the file's params.
func mergeParams(base map[string]string, flags []string) (map[string]string, error) {
	params := make(map[string]string, len(base)+len(flags))
	for k, v := range base {
		params[k] = v
	}
	for _, kv := range flags {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", kv)
		}
		params[k] = v
	}
	return params, nil
}

func executeWithLog(ctx context.Context, e *engine.Engine, planID string, params map[string]string) (*engine.Outcome, error) {
	logCtx, stopLog := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-logCtx.Done():
				return
			case ev, ok := <-e.Events():
				if !ok {
					return
				}
				printEvent(ev)
			}
		}
	}()

	out, err := e.Execute(ctx, planID, params)
	stopLog()
	wg.Wait()
	return out, err
}

func executeWithTUI(ctx context.Context, s *session, sub *engine.Submission, params map[string]string) (*engine.Outcome, error) {
	planID := sub.Plan.ID
	view := tui.NewWorkflowView(sub.Plan, tui.Options{
		Controls:    s.engine,
		Progress:    func() (models.Progress, error) { return s.engine.PlanProgress(planID) },
		RefreshRate: s.cfg.TUI.RefreshRate,
	})
	p := tui.NewProgram(view)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go tui.Pump(runCtx, p, s.engine.Events())

	type result struct {
		out *engine.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.engine.Execute(runCtx, planID, params)
		msg := tui.DoneMsg{Err: err}
		if out != nil {
			msg.Status = out.Plan.Status
		}
		p.Send(msg)
		done <- result{out, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("workflow view: %w", err)
	}
	// Quitting the view before the plan finishes cancels it.
	cancel()
	r := <-done
	return r.out, r.err
}

func shutdown(e *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
}

func printSubmission(sub *engine.Submission) {
	bold := color.New(color.Bold)
	bold.Printf("Goal: %s\n", sub.Goal.Title)
	fmt.Printf("Plan %s: %d tasks in %d levels, ~%d days\n",
		sub.Plan.ID, len(sub.Plan.Tasks), len(sub.Strategy.Levels), sub.Strategy.Timeline.EstimatedDays)
	fmt.Println()
}

func printEvent(ev orchestrator.Event) {
	ts := ev.Timestamp.Format("15:04:05")
	label := ev.TaskTitle
	if label == "" {
		label = ev.TaskID
	}
	switch ev.Type {
	case orchestrator.EventTaskStarted:
		fmt.Printf("%s %s %s (agent %s, attempt %d)\n", ts, color.CyanString("start"), label, ev.AgentID, ev.Attempt)
	case orchestrator.EventTaskCompleted:
		fmt.Printf("%s %s %s in %s\n", ts, color.GreenString("done "), label, ev.Duration.Round(time.Millisecond))
	case orchestrator.EventTaskRetrying:
		fmt.Printf("%s %s %s: %s\n", ts, color.YellowString("retry"), label, ev.Message)
	case orchestrator.EventTaskSkipped:
		fmt.Printf("%s %s %s: %s\n", ts, color.YellowString("skip "), label, ev.Message)
	case orchestrator.EventTaskFailed:
		fmt.Printf("%s %s %s: %v\n", ts, color.RedString("fail "), label, ev.Error)
	case orchestrator.EventWorkflowFailed:
		fmt.Printf("%s %s %s\n", ts, color.RedString("workflow failed"), ev.Message)
	case orchestrator.EventPlanAdapted:
		fmt.Printf("%s %s %s\n", ts, color.MagentaString("adapted"), ev.Message)
	}
}

func printOutcome(out *engine.Outcome) {
	p := out.Progress
	fmt.Println()
	summary := fmt.Sprintf("%d/%d completed, %d skipped, %d failed", p.Completed, p.Total, p.Skipped, p.Failed)
	if out.Succeeded() {
		color.New(color.FgGreen, color.Bold).Printf("Plan %s completed: %s\n", out.Plan.ID, summary)
		return
	}
	color.New(color.FgRed, color.Bold).Printf("Plan %s %s: %s\n", out.Plan.ID, out.Plan.Status, summary)
	if out.ErrorInfo != nil {
		fmt.Printf("  %s: %s\n", out.ErrorInfo.Kind, out.ErrorInfo.Message)
	}
	if !runReplan {
		fmt.Println("  Re-run with --replan to adapt the plan after a failure.")
	}
}
