package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// planEntry guards a single plan. Its mutex is the per-plan boundary.
type planEntry struct {
	mu   sync.Mutex
	plan *models.Plan
}

// Memory is the in-process Store implementation.
type Memory struct {
	goalsMu sync.RWMutex
	goals   map[string]*models.Goal

	// plansMu guards the map only; plan contents are guarded per entry.
	plansMu sync.RWMutex
	plans   map[string]*planEntry

	strategiesMu sync.RWMutex
	strategies   map[string]*models.Strategy

	execMu     sync.RWMutex
	executions map[string]*models.Execution
	execOrder  []string
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		goals:      make(map[string]*models.Goal),
		plans:      make(map[string]*planEntry),
		strategies: make(map[string]*models.Strategy),
		executions: make(map[string]*models.Execution),
	}
}

// CreateGoal stores a goal. Goals are immutable, so a copy is kept.
func (m *Memory) CreateGoal(g *models.Goal) error {
	m.goalsMu.Lock()
	defer m.goalsMu.Unlock()
	if _, exists := m.goals[g.ID]; exists {
		return fmt.Errorf("%w: goal %s already exists", models.ErrValidation, g.ID)
	}
	m.goals[g.ID] = copyGoal(g)
	return nil
}

// GetGoal returns a copy of the goal.
func (m *Memory) GetGoal(id string) (*models.Goal, error) {
	m.goalsMu.RLock()
	defer m.goalsMu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, fmt.Errorf("%w: goal %s", models.ErrNotFound, id)
	}
	return copyGoal(g), nil
}

// CreatePlan stores a new plan. Existing plans are never replaced.
func (m *Memory) CreatePlan(p *models.Plan) error {
	m.plansMu.Lock()
	defer m.plansMu.Unlock()
	if _, exists := m.plans[p.ID]; exists {
		return fmt.Errorf("%w: plan %s already exists", models.ErrValidation, p.ID)
	}
	m.plans[p.ID] = &planEntry{plan: p.Clone()}
	return nil
}

func (m *Memory) entry(id string) (*planEntry, error) {
	m.plansMu.RLock()
	defer m.plansMu.RUnlock()
	e, ok := m.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: plan %s", models.ErrNotFound, id)
	}
	return e, nil
}

// GetPlan returns a snapshot of the plan.
func (m *Memory) GetPlan(id string) (*models.Plan, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plan.Clone(), nil
}

// UpdatePlan applies fn to a copy of the plan and commits it on success.
// fn must not call back into UpdatePlan for the same plan.
func (m *Memory) UpdatePlan(id string, fn func(p *models.Plan) error) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	draft := e.plan.Clone()
	if err := fn(draft); err != nil {
		return err
	}
	draft.ID = e.plan.ID
	draft.UpdatedAt = time.Now()
	e.plan = draft
	return nil
}

// ListPlans returns snapshots of every plan ordered by creation time.
func (m *Memory) ListPlans() []*models.Plan {
	m.plansMu.RLock()
	entries := make([]*planEntry, 0, len(m.plans))
	for _, e := range m.plans {
		entries = append(entries, e)
	}
	m.plansMu.RUnlock()

	out := make([]*models.Plan, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.plan.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CreateStrategy stores a strategy.
func (m *Memory) CreateStrategy(s *models.Strategy) error {
	m.strategiesMu.Lock()
	defer m.strategiesMu.Unlock()
	if _, exists := m.strategies[s.ID]; exists {
		return fmt.Errorf("%w: strategy %s already exists", models.ErrValidation, s.ID)
	}
	m.strategies[s.ID] = s
	return nil
}

// GetStrategy returns a strategy. Strategies are read-only once stored.
func (m *Memory) GetStrategy(id string) (*models.Strategy, error) {
	m.strategiesMu.RLock()
	defer m.strategiesMu.RUnlock()
	s, ok := m.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: strategy %s", models.ErrNotFound, id)
	}
	return s, nil
}

// CreateExecution appends a new execution record.
func (m *Memory) CreateExecution(e *models.Execution) error {
	m.execMu.Lock()
	defer m.execMu.Unlock()
	if _, exists := m.executions[e.ID]; exists {
		return fmt.Errorf("%w: execution %s already exists", models.ErrValidation, e.ID)
	}
	m.executions[e.ID] = e.Clone()
	m.execOrder = append(m.execOrder, e.ID)
	return nil
}

// GetExecution returns a copy of an execution record.
func (m *Memory) GetExecution(id string) (*models.Execution, error) {
	m.execMu.RLock()
	defer m.execMu.RUnlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("%w: execution %s", models.ErrNotFound, id)
	}
	return e.Clone(), nil
}

// UpdateExecution applies fn to a copy of the record and commits it on success.
func (m *Memory) UpdateExecution(id string, fn func(e *models.Execution) error) error {
	m.execMu.Lock()
	defer m.execMu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return fmt.Errorf("%w: execution %s", models.ErrNotFound, id)
	}
	draft := e.Clone()
	if err := fn(draft); err != nil {
		return err
	}
	draft.ID = e.ID
	draft.UpdatedAt = time.Now()
	m.executions[id] = draft
	return nil
}

// ListExecutions returns the executions of a plan in creation order.
// An empty plan id lists every execution.
func (m *Memory) ListExecutions(planID string) []*models.Execution {
	m.execMu.RLock()
	defer m.execMu.RUnlock()
	var out []*models.Execution
	for _, id := range m.execOrder {
		e := m.executions[id]
		if planID == "" || e.PlanID == planID {
			out = append(out, e.Clone())
		}
	}
	return out
}

func copyGoal(g *models.Goal) *models.Goal {
	c := *g
	c.SuccessCriteria = append([]string(nil), g.SuccessCriteria...)
	c.Constraints = append([]string(nil), g.Constraints...)
	c.RequiredCapabilities = append([]string(nil), g.RequiredCapabilities...)
	return &c
}
