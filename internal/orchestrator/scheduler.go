package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// ScheduleTask assigns a pending task whose dependencies are satisfied to
// the first available capable agent and returns the new execution id.
// Processing happens asynchronously; the outcome is visible through
// ExecutionStatus.
//
// It fails with ErrScheduling, and creates no execution, when no registered
// agent can handle the task, and with ErrNoCapacity when every capable
// agent is busy. Plans with an active workflow are scheduled by the
// workflow only.
func (o *Orchestrator) ScheduleTask(ctx context.Context, planID, taskID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if run := o.runFor(planID); run != nil {
		return "", fmt.Errorf("%w: plan %s is run by workflow %s", models.ErrValidation, planID, run.execID)
	}
	return o.scheduleTask(planID, taskID, nil)
}

// scheduleTask does the work of ScheduleTask. run is set when the task is
// dispatched by a workflow; the dispatch then belongs to the run's context.
func (o *Orchestrator) scheduleTask(planID, taskID string, run *workflowRun) (string, error) {
	plan, err := o.store.GetPlan(planID)
	if err != nil {
		return "", err
	}
	task := plan.Task(taskID)
	if task == nil {
		return "", fmt.Errorf("%w: task %s in plan %s", models.ErrNotFound, taskID, planID)
	}

	execID := uuid.NewString()
	ag, err := o.registry.reserve(task.RequiredCapabilities, execID)
	if err != nil {
		debugLog("[scheduler] task %s not scheduled: %v", taskID, err)
		return "", err
	}

	var (
		attempt  int
		snapshot *models.Task
		goalID   string
	)
	err = o.store.UpdatePlan(planID, func(p *models.Plan) error {
		if p.Status == models.PlanStatusCompleted || p.Status == models.PlanStatusFailed {
			return fmt.Errorf("%w: plan %s is %s", models.ErrValidation, p.ID, p.Status)
		}
		t := p.Task(taskID)
		if t.Status != models.TaskStatusPending {
			return fmt.Errorf("%w: task %s is %s", models.ErrValidation, taskID, t.Status)
		}
		for _, depID := range t.DependsOn {
			if dep := p.Task(depID); dep == nil || !dep.Status.Satisfied() {
				return fmt.Errorf("%w: task %s is waiting on %s", models.ErrValidation, taskID, depID)
			}
		}
		t.Status = models.TaskStatusInProgress
		attempt = t.RetryCount + 1
		snapshot = t.Clone()
		goalID = p.GoalID
		return nil
	})
	if err != nil {
		o.registry.release(ag.ID(), execID)
		return "", err
	}

	now := time.Now()
	exec := &models.Execution{
		ID:        execID,
		Kind:      models.ExecutionKindTask,
		TargetID:  taskID,
		PlanID:    planID,
		AgentID:   ag.ID(),
		Attempt:   attempt,
		Status:    models.ExecutionScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if run != nil {
		exec.Params = run.params
	}
	if err := o.store.CreateExecution(exec); err != nil {
		o.registry.release(ag.ID(), execID)
		_ = o.store.UpdatePlan(planID, func(p *models.Plan) error {
			p.Task(taskID).Status = models.TaskStatusPending
			return nil
		})
		return "", fmt.Errorf("create execution: %w", err)
	}

	o.recordExecution(execID)
	o.recordPlan(planID)
	o.emit(Event{
		Type:        EventTaskScheduled,
		PlanID:      planID,
		TaskID:      taskID,
		TaskTitle:   snapshot.Title,
		ExecutionID: execID,
		AgentID:     ag.ID(),
		Attempt:     attempt,
		Message:     fmt.Sprintf("Task scheduled on %s: %s", ag.ID(), snapshot.Title),
	})
	debugLog("[scheduler] task %s -> agent %s (execution %s, attempt %d)", taskID, ag.ID(), execID, attempt)

	ctx := o.ctx
	if run != nil {
		ctx = run.ctx
		run.inflight.Add(1)
	}
	dispatched := exec.Clone()
	o.wg.Go(func() {
		if run != nil {
			defer run.inflight.Done()
		}
		o.dispatch(ctx, ag, dispatched, snapshot, goalID)
	})
	return execID, nil
}

// dispatch runs one task attempt on its agent and routes the outcome. The
// agent stays reserved until Process returns, even when the attempt was
// already resolved by a timeout, cancellation or an explicit HandleFailure.
func (o *Orchestrator) dispatch(ctx context.Context, ag agent.Agent, exec *models.Execution, task *models.Task, goalID string) {
	defer o.freeAgent(exec)

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.resolveCancelled(exec, err)
		return
	}
	defer o.sem.Release(1)

	start := time.Now()
	_ = o.store.UpdateExecution(exec.ID, func(e *models.Execution) error {
		if e.Status != models.ExecutionScheduled {
			return fmt.Errorf("%w: execution %s is %s", models.ErrValidation, e.ID, e.Status)
		}
		e.Status = models.ExecutionRunning
		return nil
	})
	o.recordExecution(exec.ID)
	o.emit(Event{
		Type:        EventTaskStarted,
		PlanID:      exec.PlanID,
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		ExecutionID: exec.ID,
		AgentID:     ag.ID(),
		Attempt:     exec.Attempt,
		Message:     fmt.Sprintf("Task started: %s", task.Title),
	})

	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout := o.policy.Scheduling.TaskTimeout; timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	req := &agent.Request{
		Task:    task,
		PlanID:  exec.PlanID,
		GoalID:  goalID,
		Attempt: exec.Attempt,
		Params:  exec.Params,
	}
	if o.memory != nil {
		req.Context = o.memory
	}
	if o.tools != nil {
		req.Tools = o.tools
	}

	var (
		res  *agent.Result
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		var pc panics.Catcher
		pc.Try(func() { res, err = ag.Process(taskCtx, req) })
		if r := pc.Recovered(); r != nil {
			err = fmt.Errorf("agent %s panicked: %w", ag.ID(), r.AsError())
		}
	}()

	select {
	case <-done:
	case <-taskCtx.Done():
		select {
		case <-done:
		default:
			// The agent has not honoured ctx. Resolve the attempt now and
			// hold the agent until Process returns.
			o.resolveInterrupted(ctx, exec, task)
			<-done
			debugLog("[scheduler] agent %s returned %s after its attempt was resolved (err=%v)",
				ag.ID(), time.Since(start).Round(time.Millisecond), err)
			return
		}
	}
	elapsed := time.Since(start)

	switch {
	case err == nil:
		if res == nil {
			res = &agent.Result{}
		}
		o.completeTask(exec, task, res, elapsed)
	case ctx.Err() != nil:
		o.resolveCancelled(exec, ctx.Err())
	case errors.Is(taskCtx.Err(), context.DeadlineExceeded):
		o.failAttempt(exec, timeoutInfo(task.ID, o.policy.Scheduling.TaskTimeout))
	default:
		o.failAttempt(exec, models.ErrorInfo{Kind: models.ErrorKindAgent, Message: err.Error()})
	}
}

// resolveInterrupted closes an attempt whose context ended while the agent
// kept working.
func (o *Orchestrator) resolveInterrupted(ctx context.Context, exec *models.Execution, task *models.Task) {
	if err := ctx.Err(); err != nil {
		o.resolveCancelled(exec, err)
		return
	}
	o.failAttempt(exec, timeoutInfo(task.ID, o.policy.Scheduling.TaskTimeout))
}

func timeoutInfo(taskID string, timeout time.Duration) models.ErrorInfo {
	return models.ErrorInfo{
		Kind:    models.ErrorKindTimeout,
		Message: fmt.Sprintf("task %s exceeded timeout of %s", taskID, timeout),
	}
}

// freeAgent releases the agent of a finished dispatch and gives waiting
// work a chance to use it.
func (o *Orchestrator) freeAgent(exec *models.Execution) {
	// Released under retryMu so a concurrent retry either sees the agent
	// free or is queued before the queue is taken.
	o.retryMu.Lock()
	o.registry.release(exec.AgentID, exec.ID)
	queued := o.retryQueue
	o.retryQueue = nil
	o.retryMu.Unlock()

	o.wakeAll()
	o.drainRetries(queued)
}

// completeTask records a successful attempt.
func (o *Orchestrator) completeTask(exec *models.Execution, task *models.Task, res *agent.Result, elapsed time.Duration) {
	err := o.store.UpdateExecution(exec.ID, func(e *models.Execution) error {
		if e.Status.IsTerminal() {
			return fmt.Errorf("%w: execution %s already %s", models.ErrValidation, e.ID, e.Status)
		}
		e.Status = models.ExecutionCompleted
		e.Output = res.Output
		return nil
	})
	if err != nil {
		// Resolved elsewhere, typically by an explicit HandleFailure.
		debugLog("[scheduler] late result for execution %s ignored: %v", exec.ID, err)
		o.wakePlan(exec.PlanID)
		return
	}

	now := time.Now()
	_ = o.store.UpdatePlan(exec.PlanID, func(p *models.Plan) error {
		t := p.Task(task.ID)
		if t.Status != models.TaskStatusInProgress {
			return fmt.Errorf("%w: task %s is %s", models.ErrValidation, t.ID, t.Status)
		}
		t.Status = models.TaskStatusCompleted
		t.Error = ""
		t.CompletedAt = &now
		return nil
	})

	if o.memory != nil && res.Output != "" {
		o.memory.Put(res.Output, memory.TierEpisodic, map[string]string{
			"plan_id":  exec.PlanID,
			"task_id":  task.ID,
			"agent_id": exec.AgentID,
		})
	}

	o.recordExecution(exec.ID)
	o.recordPlan(exec.PlanID)
	o.emit(Event{
		Type:        EventTaskCompleted,
		PlanID:      exec.PlanID,
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		ExecutionID: exec.ID,
		AgentID:     exec.AgentID,
		Attempt:     exec.Attempt,
		Message:     fmt.Sprintf("Task completed: %s", task.Title),
		TokensUsed:  res.TokensUsed,
		Duration:    elapsed,
	})
	o.wakePlan(exec.PlanID)
}

// failAttempt routes a failed attempt through HandleFailure.
func (o *Orchestrator) failAttempt(exec *models.Execution, info models.ErrorInfo) {
	outcome, err := o.HandleFailure(o.ctx, exec.ID, info)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			debugLog("[scheduler] failure of execution %s already handled: %v", exec.ID, err)
		} else {
			log.Printf("[orchestrator] warning: handle failure of execution %s: %v", exec.ID, err)
		}
		return
	}
	debugLog("[scheduler] execution %s failed (%s), action=%s", exec.ID, info.Kind, outcome.Action)
}

// resolveCancelled closes an attempt interrupted by cancellation. The task
// goes back to pending without consuming a retry.
func (o *Orchestrator) resolveCancelled(exec *models.Execution, cause error) {
	err := o.store.UpdateExecution(exec.ID, func(e *models.Execution) error {
		if e.Status.IsTerminal() {
			return fmt.Errorf("%w: execution %s already %s", models.ErrValidation, e.ID, e.Status)
		}
		e.Status = models.ExecutionFailed
		e.ErrorInfo = &models.ErrorInfo{Kind: models.ErrorKindCancelled, Message: cause.Error()}
		return nil
	})
	if err != nil {
		return
	}

	_ = o.store.UpdatePlan(exec.PlanID, func(p *models.Plan) error {
		t := p.Task(exec.TargetID)
		if t.Status != models.TaskStatusInProgress {
			return fmt.Errorf("%w: task %s is %s", models.ErrValidation, t.ID, t.Status)
		}
		t.Status = models.TaskStatusPending
		return nil
	})
	o.recordExecution(exec.ID)
	o.recordPlan(exec.PlanID)
	debugLog("[scheduler] execution %s of task %s cancelled: %v", exec.ID, exec.TargetID, cause)
	o.wakePlan(exec.PlanID)
}
