package orchestrator

import (
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// ExecutionReport is the pull-based view of an execution.
type ExecutionReport struct {
	Execution  *models.Execution
	PlanStatus models.PlanStatus
	Progress   models.Progress
	// Task is set for task executions.
	Task *models.Task
}

// ExecutionStatus reports an execution together with its plan's progress.
func (o *Orchestrator) ExecutionStatus(executionID string) (*ExecutionReport, error) {
	exec, err := o.store.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	plan, err := o.store.GetPlan(exec.PlanID)
	if err != nil {
		return nil, err
	}

	report := &ExecutionReport{
		Execution:  exec,
		PlanStatus: plan.Status,
		Progress:   plan.Progress(),
	}
	if exec.Kind == models.ExecutionKindTask {
		report.Task = plan.Task(exec.TargetID)
	}
	return report, nil
}

// PlanProgress counts the plan's tasks by status.
func (o *Orchestrator) PlanProgress(planID string) (models.Progress, error) {
	plan, err := o.store.GetPlan(planID)
	if err != nil {
		return models.Progress{}, err
	}
	return plan.Progress(), nil
}

// Executions lists every execution recorded for a plan.
func (o *Orchestrator) Executions(planID string) []*models.Execution {
	return o.store.ListExecutions(planID)
}
