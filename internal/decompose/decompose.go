// Package decompose turns structured goals into validated task plans.
package decompose

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Rick1330/Nexus-Framework/internal/graph"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// dependencyWindow is how many immediately preceding tasks each task depends
// on. Tasks without a full window of predecessors are roots.
const dependencyWindow = 2

// Decomposer breaks a goal down into a plan of dependent tasks.
type Decomposer struct {
	effort   models.Effort
	debugLog func(format string, args ...any)
}

// New creates a Decomposer that assigns medium effort to generated tasks.
func New() *Decomposer {
	return &Decomposer{
		effort:   models.EffortMedium,
		debugLog: func(format string, args ...any) {},
	}
}

// SetDebugLog sets the debug logging function.
func (d *Decomposer) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		d.debugLog = fn
	}
}

// Decompose creates one task per success criterion (at least one task).
// From the third task on, each task depends on the two tasks immediately
// before it. The result is validated by graph traversal before it is returned.
func (d *Decomposer) Decompose(goal *models.Goal) (*models.Plan, error) {
	if goal == nil {
		return nil, fmt.Errorf("%w: goal is nil", models.ErrValidation)
	}

	criteria := goal.SuccessCriteria
	if len(criteria) == 0 {
		criteria = []string{goal.Title}
	}

	tasks := make([]*models.Task, len(criteria))
	for i, criterion := range criteria {
		id := fmt.Sprintf("task_%d", i+1)
		var deps []string
		if i >= dependencyWindow {
			for j := i - dependencyWindow; j < i; j++ {
				deps = append(deps, tasks[j].ID)
			}
		}
		tasks[i] = &models.Task{
			ID:                   id,
			Title:                criterion,
			Description:          fmt.Sprintf("Achieve %q for goal %q", criterion, goal.Title),
			DependsOn:            deps,
			RequiredCapabilities: append([]string(nil), goal.RequiredCapabilities...),
			EstimatedEffort:      d.effort,
			Status:               models.TaskStatusPending,
		}
	}

	if err := Validate(tasks); err != nil {
		return nil, fmt.Errorf("decompose goal %s: %w", goal.ID, err)
	}

	now := time.Now()
	plan := &models.Plan{
		ID:        uuid.New().String(),
		GoalID:    goal.ID,
		Tasks:     tasks,
		Status:    models.PlanStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.debugLog("[decompose] goal %s -> plan %s with %d tasks", goal.ID, plan.ID, len(tasks))
	return plan, nil
}

// Validate checks a task list: ids unique and known, no cycles (reported
// with the cycle path), and only backward references.
func Validate(tasks []*models.Task) error {
	g, err := graph.FromTasks(tasks)
	if err != nil {
		return err
	}
	return g.CheckBackwardReferences()
}

// SetDependencies replaces the dependency set of one task in place. The edit
// is validated against a copy and only applied if the plan stays a valid DAG.
func SetDependencies(plan *models.Plan, taskID string, deps []string) error {
	if plan.Task(taskID) == nil {
		return fmt.Errorf("%w: task %s in plan %s", models.ErrNotFound, taskID, plan.ID)
	}

	draft := plan.Clone()
	draft.Task(taskID).DependsOn = slices.Clone(deps)
	if err := Validate(draft.Tasks); err != nil {
		return fmt.Errorf("set dependencies of %s: %w", taskID, err)
	}

	plan.Task(taskID).DependsOn = slices.Clone(deps)
	return nil
}
