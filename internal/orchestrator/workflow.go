package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rick1330/Nexus-Framework/internal/graph"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// workflowRun is the state of one executing plan.
type workflowRun struct {
	planID string
	execID string
	params map[string]string

	ctx    context.Context
	cancel context.CancelFunc
	// wake nudges the run loop after a task changes state.
	wake chan struct{}
	done chan struct{}
	// inflight counts dispatches owned by this run.
	inflight sync.WaitGroup

	mu      sync.Mutex
	failure *models.ErrorInfo
}

func (r *workflowRun) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// stop cancels the run. The first reason wins.
func (r *workflowRun) stop(info models.ErrorInfo) {
	r.mu.Lock()
	if r.failure == nil {
		r.failure = &info
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *workflowRun) stopReason() models.ErrorInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return *r.failure
	}
	return models.ErrorInfo{Kind: models.ErrorKindCancelled, Message: "workflow cancelled"}
}

// StartWorkflow starts executing a strategized plan and returns the
// workflow execution id without waiting. The plan must carry a strategy
// formulated for it, otherwise StartWorkflow fails with ErrValidation.
// Tasks that are not completed or skipped, as in adapted plans, start
// again from pending with their retries reset.
//
// The workflow outlives ctx; stop it with Cancel.
func (o *Orchestrator) StartWorkflow(ctx context.Context, planID string, params map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.pauseCtrl.IsStopped() {
		return "", ErrStopped
	}

	plan, err := o.store.GetPlan(planID)
	if err != nil {
		return "", err
	}
	strategy, err := o.finalizedStrategy(plan)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(o.ctx)
	run := &workflowRun{
		planID: planID,
		execID: uuid.NewString(),
		params: maps.Clone(params),
		ctx:    runCtx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	o.runsMu.Lock()
	if active, ok := o.runs[planID]; ok {
		o.runsMu.Unlock()
		cancel()
		return "", fmt.Errorf("%w: plan %s is already executing (workflow %s)", models.ErrValidation, planID, active.execID)
	}
	o.runs[planID] = run
	o.runsMu.Unlock()

	abort := func(err error) (string, error) {
		o.removeRun(planID)
		cancel()
		return "", fmt.Errorf("start workflow for plan %s: %w", planID, err)
	}

	var g *graph.DependencyGraph
	err = o.store.UpdatePlan(planID, func(p *models.Plan) error {
		if p.Status != models.PlanStatusStrategized || p.StrategyID != strategy.ID {
			return fmt.Errorf("%w: plan %s changed to %s before start", models.ErrValidation, p.ID, p.Status)
		}
		var err error
		g, err = graph.FromTasks(p.Tasks)
		if err != nil {
			return err
		}
		if err := g.CheckBackwardReferences(); err != nil {
			return err
		}
		for _, t := range p.Tasks {
			if !t.Status.Satisfied() {
				t.Status = models.TaskStatusPending
				t.RetryCount = 0
				t.CompletedAt = nil
			}
		}
		p.Status = models.PlanStatusExecuting
		return nil
	})
	if err != nil {
		return abort(err)
	}
	g.SetDebugLog(debugLog)

	now := time.Now()
	exec := &models.Execution{
		ID:        run.execID,
		Kind:      models.ExecutionKindWorkflow,
		TargetID:  planID,
		PlanID:    planID,
		Attempt:   1,
		Status:    models.ExecutionRunning,
		Params:    run.params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.CreateExecution(exec); err != nil {
		_ = o.store.UpdatePlan(planID, func(p *models.Plan) error {
			p.Status = models.PlanStatusStrategized
			return nil
		})
		return abort(err)
	}

	o.recordExecution(run.execID)
	o.recordPlan(planID)
	o.emit(Event{
		Type:        EventWorkflowStarted,
		PlanID:      planID,
		ExecutionID: run.execID,
		Message:     fmt.Sprintf("Workflow started: %d tasks in %d levels", g.Size(), len(strategy.Levels)),
	})
	log.Printf("[orchestrator] workflow %s started for plan %s", run.execID, planID)

	o.wg.Go(func() { o.runWorkflow(run, g) })
	return run.execID, nil
}

// finalizedStrategy returns the strategy a plan may run with.
func (o *Orchestrator) finalizedStrategy(p *models.Plan) (*models.Strategy, error) {
	if p.Status != models.PlanStatusStrategized || p.StrategyID == "" {
		return nil, fmt.Errorf("%w: plan %s is %s and has no finalized strategy", models.ErrValidation, p.ID, p.Status)
	}
	s, err := o.store.GetStrategy(p.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("%w: plan %s strategy %s: %v", models.ErrValidation, p.ID, p.StrategyID, err)
	}
	if s.PlanID != p.ID {
		return nil, fmt.Errorf("%w: strategy %s belongs to plan %s", models.ErrValidation, s.ID, s.PlanID)
	}
	return s, nil
}

// runWorkflow dispatches ready tasks until the plan is finished or the run
// is cancelled. It sleeps on the wake channel between changes.
func (o *Orchestrator) runWorkflow(run *workflowRun, g *graph.DependencyGraph) {
	defer close(run.done)

	ticker := time.NewTicker(o.policy.Loop.PollInterval)
	defer ticker.Stop()

	for {
		if err := o.pauseCtrl.WaitIfPaused(run.ctx); err != nil || run.ctx.Err() != nil {
			o.abortRun(run)
			return
		}

		plan, err := o.store.GetPlan(run.planID)
		if err != nil {
			run.stop(models.ErrorInfo{Kind: models.ErrorKindSchedule, Message: err.Error()})
			o.abortRun(run)
			return
		}

		status := func(id string) models.TaskStatus { return plan.Task(id).Status }
		ready := g.Ready(status)
		inFlight := 0
		for _, t := range plan.Tasks {
			if t.Status == models.TaskStatusInProgress {
				inFlight++
			}
		}
		debugLog("[runLoop] plan %s: %d ready, %d in flight", run.planID, len(ready), inFlight)

		if len(ready) == 0 && inFlight == 0 {
			o.finishRun(run, plan)
			return
		}

		for _, id := range ready {
			if run.ctx.Err() != nil || o.pauseCtrl.IsPaused() {
				break
			}
			execID, err := o.scheduleTask(run.planID, id, run)
			switch {
			case err == nil:
				debugLog("[runLoop] dispatched %s as %s", id, execID)
			case errors.Is(err, models.ErrNoCapacity):
				debugLog("[runLoop] %s waiting for a free agent", id)
			case errors.Is(err, models.ErrScheduling):
				o.failUnschedulable(run.ctx, run.planID, id, err)
			default:
				log.Printf("[orchestrator] warning: dispatch %s: %v", id, err)
			}
		}

		select {
		case <-run.ctx.Done():
		case <-run.wake:
		case <-ticker.C:
		}
	}
}

// finishRun ends a run that has nothing left to do.
func (o *Orchestrator) finishRun(run *workflowRun, plan *models.Plan) {
	var failed, blocked []string
	for _, t := range plan.Tasks {
		switch {
		case t.Status == models.TaskStatusFailed:
			failed = append(failed, t.ID)
		case !t.Status.Satisfied():
			blocked = append(blocked, t.ID)
		}
	}

	if len(failed) == 0 && len(blocked) == 0 {
		o.endRun(run, models.PlanStatusCompleted, nil)
		return
	}
	info := &models.ErrorInfo{Kind: models.ErrorKindExhausted}
	if len(failed) > 0 {
		info.Message = fmt.Sprintf("tasks failed: %s", strings.Join(failed, ", "))
	} else {
		info.Message = fmt.Sprintf("tasks cannot proceed: %s", strings.Join(blocked, ", "))
	}
	o.endRun(run, models.PlanStatusFailed, info)
}

// abortRun waits for the run's in-flight tasks to report back and fails
// the plan with the stop reason.
func (o *Orchestrator) abortRun(run *workflowRun) {
	run.inflight.Wait()
	info := run.stopReason()
	o.endRun(run, models.PlanStatusFailed, &info)
}

func (o *Orchestrator) endRun(run *workflowRun, status models.PlanStatus, info *models.ErrorInfo) {
	_ = o.store.UpdatePlan(run.planID, func(p *models.Plan) error {
		p.Status = status
		return nil
	})
	_ = o.store.UpdateExecution(run.execID, func(e *models.Execution) error {
		if e.Status.IsTerminal() {
			return fmt.Errorf("%w: execution %s already %s", models.ErrValidation, e.ID, e.Status)
		}
		if status == models.PlanStatusCompleted {
			e.Status = models.ExecutionCompleted
		} else {
			e.Status = models.ExecutionFailed
			e.ErrorInfo = info
		}
		return nil
	})
	o.removeRun(run.planID)
	run.cancel()

	o.recordExecution(run.execID)
	o.recordPlan(run.planID)

	ev := Event{PlanID: run.planID, ExecutionID: run.execID}
	if plan, err := o.store.GetPlan(run.planID); err == nil {
		p := plan.Progress()
		ev.Message = fmt.Sprintf("%d/%d tasks done", p.Completed+p.Skipped, p.Total)
	}
	if status == models.PlanStatusCompleted {
		ev.Type = EventWorkflowCompleted
		log.Printf("[orchestrator] workflow %s completed for plan %s", run.execID, run.planID)
	} else {
		ev.Type = EventWorkflowFailed
		ev.Error = fmt.Errorf("%s: %s", info.Kind, info.Message)
		log.Printf("[orchestrator] workflow %s failed for plan %s: %s", run.execID, run.planID, info.Message)
	}
	o.emit(ev)
}

// failWorkflow fails the plan of a workflow execution resolved through
// HandleFailure.
func (o *Orchestrator) failWorkflow(exec *models.Execution, info models.ErrorInfo) {
	if run := o.runFor(exec.PlanID); run != nil && run.execID == exec.ID {
		run.stop(info)
		return
	}
	_ = o.store.UpdatePlan(exec.PlanID, func(p *models.Plan) error {
		if p.Status != models.PlanStatusExecuting {
			return fmt.Errorf("%w: plan %s is %s", models.ErrValidation, p.ID, p.Status)
		}
		p.Status = models.PlanStatusFailed
		return nil
	})
	o.recordPlan(exec.PlanID)
}

// Cancel stops a running workflow. Tasks not yet dispatched are never
// started; dispatched tasks see their context cancelled and the plan fails
// once they have reported back.
func (o *Orchestrator) Cancel(planID string) error {
	run := o.runFor(planID)
	if run == nil {
		if _, err := o.store.GetPlan(planID); err != nil {
			return err
		}
		return fmt.Errorf("%w: plan %s is not executing", models.ErrValidation, planID)
	}
	run.stop(models.ErrorInfo{Kind: models.ErrorKindCancelled, Message: "workflow cancelled"})
	log.Printf("[orchestrator] cancelling workflow %s for plan %s", run.execID, planID)
	return nil
}

// Wait blocks until the plan's workflow has finished or ctx ends. It
// returns immediately if the plan is not executing.
func (o *Orchestrator) Wait(ctx context.Context, planID string) error {
	run := o.runFor(planID)
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the plan has an active workflow.
func (o *Orchestrator) IsRunning(planID string) bool {
	return o.runFor(planID) != nil
}

func (o *Orchestrator) runFor(planID string) *workflowRun {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	return o.runs[planID]
}

func (o *Orchestrator) removeRun(planID string) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	delete(o.runs, planID)
}

func (o *Orchestrator) wakePlan(planID string) {
	if run := o.runFor(planID); run != nil {
		run.signal()
	}
}

func (o *Orchestrator) wakeAll() {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	for _, run := range o.runs {
		run.signal()
	}
}
