// Package store holds goals, plans, strategies and executions in process.
package store

import "github.com/Rick1330/Nexus-Framework/pkg/models"

// GoalStore handles goal persistence.
type GoalStore interface {
	CreateGoal(g *models.Goal) error
	GetGoal(id string) (*models.Goal, error)
}

// PlanStore handles plan persistence. UpdatePlan is the single-writer
// boundary for a plan: updates to one plan are serialised, updates to
// different plans never contend.
type PlanStore interface {
	CreatePlan(p *models.Plan) error
	// GetPlan returns a snapshot that the caller may freely modify.
	GetPlan(id string) (*models.Plan, error)
	// UpdatePlan runs fn on a copy of the plan under the plan's lock and
	// commits the copy only if fn returns nil.
	UpdatePlan(id string, fn func(p *models.Plan) error) error
	ListPlans() []*models.Plan
}

// StrategyStore handles strategy persistence.
type StrategyStore interface {
	CreateStrategy(s *models.Strategy) error
	GetStrategy(id string) (*models.Strategy, error)
}

// ExecutionStore handles execution records. Records are never deleted.
type ExecutionStore interface {
	CreateExecution(e *models.Execution) error
	GetExecution(id string) (*models.Execution, error)
	UpdateExecution(id string, fn func(e *models.Execution) error) error
	ListExecutions(planID string) []*models.Execution
}

// Store composes every sub-store the engine needs.
type Store interface {
	GoalStore
	PlanStore
	StrategyStore
	ExecutionStore
}

// Compile-time verification that Memory implements all interfaces.
var (
	_ Store          = (*Memory)(nil)
	_ GoalStore      = (*Memory)(nil)
	_ PlanStore      = (*Memory)(nil)
	_ StrategyStore  = (*Memory)(nil)
	_ ExecutionStore = (*Memory)(nil)
)
