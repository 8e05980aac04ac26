// Package engine is the submission API: it takes raw requirements through
// goal interpretation, decomposition, strategy formulation and execution.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/internal/decompose"
	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/internal/store"
	"github.com/Rick1330/Nexus-Framework/internal/strategy"
	"github.com/Rick1330/Nexus-Framework/internal/tools"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// Engine wires the goal store, decomposer, strategy formulator and
// orchestrator behind one API.
type Engine struct {
	store      *store.Memory
	decomposer *decompose.Decomposer
	formulator *strategy.Formulator
	orch       *orchestrator.Orchestrator
	journal    orchestrator.Journal
	logger     *orchestrator.DebugLogger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	policy  *policy.Config
	journal orchestrator.Journal
	logger  *orchestrator.DebugLogger
	memory  *memory.Store
	tools   tools.Invoker
}

// WithPolicy sets the scheduling, strategy and fallback policy.
func WithPolicy(p *policy.Config) Option {
	return func(o *engineOptions) { o.policy = p }
}

// WithJournal records plans and executions as they change.
func WithJournal(j orchestrator.Journal) Option {
	return func(o *engineOptions) { o.journal = j }
}

// WithDebugLogger routes internal debug output to l.
func WithDebugLogger(l *orchestrator.DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithMemory gives agents access to a shared context store.
func WithMemory(m *memory.Store) Option {
	return func(o *engineOptions) { o.memory = m }
}

// WithTools gives agents access to a tool registry.
func WithTools(t tools.Invoker) Option {
	return func(o *engineOptions) { o.tools = t }
}

// New creates an engine with an in-process store.
func New(opts ...Option) *Engine {
	eo := &engineOptions{}
	for _, opt := range opts {
		opt(eo)
	}
	if eo.policy == nil {
		eo.policy = policy.Default()
	}
	if eo.logger == nil {
		eo.logger = orchestrator.NopLogger()
	}

	st := store.NewMemory()
	orchOpts := []orchestrator.Option{
		orchestrator.WithPolicy(eo.policy),
		orchestrator.WithLogger(eo.logger),
	}
	if eo.journal != nil {
		orchOpts = append(orchOpts, orchestrator.WithJournal(eo.journal))
	}
	if eo.memory != nil {
		orchOpts = append(orchOpts, orchestrator.WithMemory(eo.memory))
	}
	if eo.tools != nil {
		orchOpts = append(orchOpts, orchestrator.WithTools(eo.tools))
	}
	orch := orchestrator.New(st, orchOpts...)

	d := decompose.New()
	d.SetDebugLog(eo.logger.Log)
	f := strategy.New(st, st, orch.Policy())
	f.SetDebugLog(eo.logger.Log)

	return &Engine{
		store:      st,
		decomposer: d,
		formulator: f,
		orch:       orch,
		journal:    eo.journal,
		logger:     eo.logger,
	}
}

// Orchestrator exposes the underlying orchestrator.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator {
	return e.orch
}

// RegisterAgent adds an agent to the pool.
func (e *Engine) RegisterAgent(a agent.Agent) error {
	return e.orch.RegisterAgent(a)
}

// SubmitRequirements interprets raw requirements into a stored goal.
func (e *Engine) SubmitRequirements(requirements map[string]any) (*models.Goal, error) {
	goal, err := decompose.Interpret(requirements)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateGoal(goal); err != nil {
		return nil, fmt.Errorf("store goal: %w", err)
	}
	log.Printf("[engine] goal %s submitted: %s (%d criteria)", goal.ID, goal.Title, len(goal.SuccessCriteria))
	return goal, nil
}

// DecomposeGoal builds and stores a validated plan for a goal.
func (e *Engine) DecomposeGoal(goalID string) (*models.Plan, error) {
	goal, err := e.store.GetGoal(goalID)
	if err != nil {
		return nil, err
	}
	plan, err := e.decomposer.Decompose(goal)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreatePlan(plan); err != nil {
		return nil, fmt.Errorf("store plan: %w", err)
	}
	e.record(plan.ID)
	log.Printf("[engine] goal %s decomposed into plan %s (%d tasks)", goalID, plan.ID, len(plan.Tasks))
	return plan, nil
}

// FormulateStrategy builds the strategy for a plan and marks it strategized.
func (e *Engine) FormulateStrategy(planID string) (*models.Strategy, error) {
	s, err := e.formulator.Formulate(planID)
	if err != nil {
		return nil, err
	}
	e.record(planID)
	return s, nil
}

// SetTaskDependencies replaces one task's dependencies on a plan that has not
// started. A strategized plan loses its strategy and must be formulated again.
func (e *Engine) SetTaskDependencies(planID, taskID string, deps []string) error {
	err := e.store.UpdatePlan(planID, func(p *models.Plan) error {
		switch p.Status {
		case models.PlanStatusCreated, models.PlanStatusStrategized, models.PlanStatusAdapted:
		default:
			return fmt.Errorf("%w: plan %s is %s and its dependencies are fixed", models.ErrValidation, p.ID, p.Status)
		}
		if err := decompose.SetDependencies(p, taskID, deps); err != nil {
			return err
		}
		if p.Status == models.PlanStatusStrategized {
			p.StrategyID = ""
			p.Status = models.PlanStatusCreated
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.record(planID)
	log.Printf("[engine] plan %s: task %s now depends on %v", planID, taskID, deps)
	return nil
}

// StartWorkflow begins executing a strategized plan and returns the
// workflow execution id. Progress is pull-based through ExecutionStatus.
func (e *Engine) StartWorkflow(ctx context.Context, planID string, params map[string]string) (string, error) {
	return e.orch.StartWorkflow(ctx, planID, params)
}

// ExecutionStatus reports an execution and the progress of its plan.
func (e *Engine) ExecutionStatus(executionID string) (*orchestrator.ExecutionReport, error) {
	return e.orch.ExecutionStatus(executionID)
}

// PlanProgress counts a plan's tasks by status.
func (e *Engine) PlanProgress(planID string) (models.Progress, error) {
	return e.orch.PlanProgress(planID)
}

// AdaptPlan derives a new, unstrategized plan from a finished one.
func (e *Engine) AdaptPlan(planID, reason string) (*models.Plan, error) {
	return e.orch.AdaptPlan(planID, reason)
}

// Replan adapts a plan and formulates a strategy for the result, leaving it
// ready to start.
func (e *Engine) Replan(planID, reason string) (*models.Plan, *models.Strategy, error) {
	adapted, err := e.orch.AdaptPlan(planID, reason)
	if err != nil {
		return nil, nil, err
	}
	s, err := e.FormulateStrategy(adapted.ID)
	if err != nil {
		return adapted, nil, err
	}
	plan, err := e.store.GetPlan(adapted.ID)
	if err != nil {
		return nil, nil, err
	}
	return plan, s, nil
}

// Cancel stops a running workflow.
func (e *Engine) Cancel(planID string) error {
	return e.orch.Cancel(planID)
}

// Wait blocks until the plan's workflow ends or ctx is done.
func (e *Engine) Wait(ctx context.Context, planID string) error {
	return e.orch.Wait(ctx, planID)
}

// Pause stops new dispatches; running tasks finish.
func (e *Engine) Pause() { e.orch.Pause() }

// Resume lifts a pause.
func (e *Engine) Resume() { e.orch.Resume() }

// IsPaused reports whether dispatch is paused.
func (e *Engine) IsPaused() bool { return e.orch.IsPaused() }

// Events returns the orchestrator event stream.
func (e *Engine) Events() <-chan orchestrator.Event {
	return e.orch.Events()
}

// Goal returns a stored goal.
func (e *Engine) Goal(id string) (*models.Goal, error) {
	return e.store.GetGoal(id)
}

// Plan returns a snapshot of a stored plan.
func (e *Engine) Plan(id string) (*models.Plan, error) {
	return e.store.GetPlan(id)
}

// Strategy returns a stored strategy.
func (e *Engine) Strategy(id string) (*models.Strategy, error) {
	return e.store.GetStrategy(id)
}

// Plans lists every stored plan.
func (e *Engine) Plans() []*models.Plan {
	return e.store.ListPlans()
}

// Shutdown cancels running workflows and waits for dispatches to return.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.orch.Shutdown(ctx)
}

// record journals a plan snapshot. Journal failures never fail the caller.
func (e *Engine) record(planID string) {
	if e.journal == nil {
		return
	}
	p, err := e.store.GetPlan(planID)
	if err != nil {
		return
	}
	if err := e.journal.RecordPlan(p); err != nil {
		log.Printf("[engine] warning: journal plan %s: %v", planID, err)
	}
}
