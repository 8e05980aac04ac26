package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Rick1330/Nexus-Framework/internal/graph"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// FailureAction is the decision taken for a failed attempt.
type FailureAction int

const (
	// ActionRetry resets the task to pending for another attempt.
	ActionRetry FailureAction = iota
	// ActionSkip marks the task skipped; dependents treat it as satisfied.
	ActionSkip
	// ActionFail marks the task and everything depending on it failed.
	ActionFail
)

// String returns a human-readable representation of the action.
func (a FailureAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionSkip:
		return "skip"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// FailureOutcome reports how a failure was resolved.
type FailureOutcome struct {
	Action     FailureAction
	TaskID     string
	RetryCount int
	// Propagated lists the dependents failed together with the task.
	Propagated []string
	// Err is set when the failure is terminal. For task failures it wraps
	// models.ErrRetryExhausted.
	Err error
}

// HandleFailure resolves a failed execution. For a task execution the
// task's fallback policy decides: retry while retries remain, otherwise
// skip if the skip condition holds, otherwise fail the task and every task
// depending on it. A workflow execution fails its plan.
//
// Unknown executions fail with ErrNotFound and executions that already
// reached a terminal status fail with ErrValidation.
func (o *Orchestrator) HandleFailure(ctx context.Context, executionID string, info models.ErrorInfo) (*FailureOutcome, error) {
	exec, err := o.store.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	if info.Kind == "" {
		info.Kind = models.ErrorKindAgent
	}

	err = o.store.UpdateExecution(executionID, func(e *models.Execution) error {
		if e.Status.IsTerminal() {
			return fmt.Errorf("%w: execution %s already %s", models.ErrValidation, e.ID, e.Status)
		}
		e.Status = models.ExecutionFailed
		e.ErrorInfo = &info
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.recordExecution(executionID)

	if exec.Kind == models.ExecutionKindWorkflow {
		o.failWorkflow(exec, info)
		return &FailureOutcome{
			Action: ActionFail,
			Err:    fmt.Errorf("workflow %s for plan %s failed: %s", exec.ID, exec.PlanID, info.Message),
		}, nil
	}

	// The agent is released by the dispatch once Process returns.
	outcome, err := o.resolveTask(exec.PlanID, exec.TargetID, info, true)
	if err != nil {
		return nil, err
	}
	o.afterResolution(ctx, exec.PlanID, exec.ID, exec.AgentID, outcome)
	return outcome, nil
}

// failUnschedulable resolves a task that no registered agent can handle.
// Retrying cannot help, so only the skip condition is considered.
func (o *Orchestrator) failUnschedulable(ctx context.Context, planID, taskID string, cause error) {
	info := models.ErrorInfo{Kind: models.ErrorKindSchedule, Message: cause.Error()}
	outcome, err := o.resolveTask(planID, taskID, info, false)
	if err != nil {
		log.Printf("[orchestrator] warning: resolve unschedulable task %s: %v", taskID, err)
		return
	}
	o.afterResolution(ctx, planID, "", "", outcome)
}

// resolveTask applies the fallback policy to a failed task under the plan's
// lock.
func (o *Orchestrator) resolveTask(planID, taskID string, info models.ErrorInfo, allowRetry bool) (*FailureOutcome, error) {
	plan, err := o.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	strategy := o.strategyFor(plan)

	var outcome *FailureOutcome
	err = o.store.UpdatePlan(planID, func(p *models.Plan) error {
		t := p.Task(taskID)
		if t == nil {
			return fmt.Errorf("%w: task %s in plan %s", models.ErrNotFound, taskID, planID)
		}
		if t.Status.IsTerminal() {
			return fmt.Errorf("%w: task %s already %s", models.ErrValidation, taskID, t.Status)
		}
		g, err := graph.FromTasks(p.Tasks)
		if err != nil {
			return err
		}

		fb := o.fallbackFor(strategy, t)
		now := time.Now()
		t.Error = info.Message
		outcome = &FailureOutcome{TaskID: taskID}

		switch {
		case allowRetry && fb.Retry && t.RetryCount < fb.MaxRetries:
			t.RetryCount++
			t.Status = models.TaskStatusPending
			outcome.Action = ActionRetry
		case shouldSkip(fb.SkipCondition, g, taskID):
			t.Status = models.TaskStatusSkipped
			t.CompletedAt = &now
			outcome.Action = ActionSkip
		default:
			t.Status = models.TaskStatusFailed
			t.CompletedAt = &now
			outcome.Action = ActionFail
			for _, id := range g.TransitiveDependents(taskID) {
				dep := p.Task(id)
				if dep.Status.IsTerminal() {
					continue
				}
				dep.Status = models.TaskStatusFailed
				dep.Error = fmt.Sprintf("dependency %s failed", taskID)
				dep.CompletedAt = &now
				outcome.Propagated = append(outcome.Propagated, id)
			}
			outcome.Err = fmt.Errorf("%w: task %s failed after %d retries: %s",
				models.ErrRetryExhausted, taskID, t.RetryCount, info.Message)
		}
		outcome.RetryCount = t.RetryCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// afterResolution publishes a resolved failure and moves the plan along.
func (o *Orchestrator) afterResolution(ctx context.Context, planID, execID, agentID string, outcome *FailureOutcome) {
	o.recordPlan(planID)

	ev := Event{
		PlanID:      planID,
		TaskID:      outcome.TaskID,
		ExecutionID: execID,
		AgentID:     agentID,
	}
	switch outcome.Action {
	case ActionRetry:
		ev.Type = EventTaskRetrying
		ev.Message = fmt.Sprintf("Retrying task %s (retry %d)", outcome.TaskID, outcome.RetryCount)
	case ActionSkip:
		ev.Type = EventTaskSkipped
		ev.Message = fmt.Sprintf("Task %s skipped by fallback policy", outcome.TaskID)
	case ActionFail:
		ev.Type = EventTaskFailed
		ev.Error = outcome.Err
		ev.Message = fmt.Sprintf("Task %s failed", outcome.TaskID)
		if len(outcome.Propagated) > 0 {
			ev.Message = fmt.Sprintf("Task %s failed, dependents failed: %v", outcome.TaskID, outcome.Propagated)
		}
		log.Printf("[orchestrator] %v", outcome.Err)
	}
	o.emit(ev)

	if run := o.runFor(planID); run != nil {
		run.signal()
		return
	}
	if outcome.Action == ActionRetry {
		if err := ctx.Err(); err != nil {
			return
		}
		o.retry(planID, outcome.TaskID)
	}
}

// retry reschedules a task outside a workflow run. When every capable agent
// is busy the retry is queued until an agent is freed.
func (o *Orchestrator) retry(planID, taskID string) {
	o.retryMu.Lock()
	_, err := o.scheduleTask(planID, taskID, nil)
	if errors.Is(err, models.ErrNoCapacity) {
		o.retryQueue = append(o.retryQueue, taskRef{planID: planID, taskID: taskID})
	}
	o.retryMu.Unlock()

	switch {
	case err == nil:
	case errors.Is(err, models.ErrNoCapacity):
		debugLog("[scheduler] retry of %s queued until an agent is free", taskID)
	default:
		log.Printf("[orchestrator] warning: reschedule task %s: %v", taskID, err)
	}
}

// drainRetries reschedules queued retries. Plans now owned by a workflow
// run are left to the run.
func (o *Orchestrator) drainRetries(queued []taskRef) {
	for _, ref := range queued {
		if o.ctx.Err() != nil {
			return
		}
		if o.runFor(ref.planID) != nil {
			continue
		}
		o.retry(ref.planID, ref.taskID)
	}
}

// fallbackFor picks the policy for a task: the strategy's entry, then the
// task's own override, then the configured default.
func (o *Orchestrator) fallbackFor(s *models.Strategy, t *models.Task) models.FallbackPolicy {
	if fb, ok := s.Fallback(t.ID); ok {
		return fb
	}
	if t.Fallback != nil {
		return *t.Fallback
	}
	return o.policy.FallbackFor(t.Title)
}

// strategyFor returns the plan's strategy, or nil if it has none.
func (o *Orchestrator) strategyFor(p *models.Plan) *models.Strategy {
	if p.StrategyID == "" {
		return nil
	}
	s, err := o.store.GetStrategy(p.StrategyID)
	if err != nil {
		return nil
	}
	return s
}

// shouldSkip evaluates a skip condition. A task is non-critical when no
// other task depends on it.
func shouldSkip(cond models.SkipCondition, g *graph.DependencyGraph, taskID string) bool {
	switch cond {
	case models.SkipAlways:
		return true
	case models.SkipNonCritical:
		return len(g.Dependents(taskID)) == 0
	default:
		return false
	}
}
