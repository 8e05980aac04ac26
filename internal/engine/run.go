package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rick1330/Nexus-Framework/internal/signals"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// Submission is the result of taking requirements up to a ready plan.
type Submission struct {
	Goal     *models.Goal
	Plan     *models.Plan
	Strategy *models.Strategy
}

// Prepare interprets requirements, decomposes the goal and formulates a
// strategy. The returned plan is strategized and ready to start.
func (e *Engine) Prepare(requirements map[string]any) (*Submission, error) {
	goal, err := e.SubmitRequirements(requirements)
	if err != nil {
		return nil, err
	}
	plan, err := e.DecomposeGoal(goal.ID)
	if err != nil {
		return nil, err
	}
	s, err := e.FormulateStrategy(plan.ID)
	if err != nil {
		return nil, err
	}
	plan, err = e.store.GetPlan(plan.ID)
	if err != nil {
		return nil, err
	}
	return &Submission{Goal: goal, Plan: plan, Strategy: s}, nil
}

// Outcome describes a finished workflow.
type Outcome struct {
	ExecutionID string
	Plan        *models.Plan
	Progress    models.Progress
	// ErrorInfo is set when the plan failed or was cancelled.
	ErrorInfo *models.ErrorInfo
}

// Succeeded reports whether every task was completed or skipped.
func (o *Outcome) Succeeded() bool {
	return o.Plan != nil && o.Plan.Status == models.PlanStatusCompleted
}

// Execute starts the plan's workflow and waits for it to end. Cancelling ctx
// cancels the workflow; the outcome still describes where it stopped.
func (e *Engine) Execute(ctx context.Context, planID string, params map[string]string) (*Outcome, error) {
	execID, err := e.StartWorkflow(ctx, planID, params)
	if err != nil {
		return nil, err
	}

	if err := e.Wait(ctx, planID); err != nil {
		// ErrValidation here means the run ended on its own in the meantime.
		if err := e.Cancel(planID); err != nil && !errors.Is(err, models.ErrValidation) {
			return nil, fmt.Errorf("cancel plan %s: %w", planID, err)
		}
		if err := e.Wait(context.Background(), planID); err != nil {
			return nil, err
		}
	}

	return e.outcome(execID)
}

func (e *Engine) outcome(execID string) (*Outcome, error) {
	report, err := e.ExecutionStatus(execID)
	if err != nil {
		return nil, err
	}
	plan, err := e.store.GetPlan(report.Execution.PlanID)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		ExecutionID: execID,
		Plan:        plan,
		Progress:    report.Progress,
		ErrorInfo:   report.Execution.ErrorInfo,
	}, nil
}

// Run takes requirements all the way through execution.
func (e *Engine) Run(ctx context.Context, requirements map[string]any, params map[string]string) (*Submission, *Outcome, error) {
	sub, err := e.Prepare(requirements)
	if err != nil {
		return nil, nil, err
	}
	out, err := e.Execute(ctx, sub.Plan.ID, params)
	if err != nil {
		return sub, nil, err
	}
	return sub, out, nil
}

var _ signals.Target = (*Engine)(nil)
