// Package strategy computes execution strategies for plans: execution
// levels, resource allocation, timeline estimates and fallback policies.
package strategy

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Rick1330/Nexus-Framework/internal/graph"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/internal/store"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// Formulator builds strategies and attaches them to stored plans.
type Formulator struct {
	plans      store.PlanStore
	strategies store.StrategyStore
	policy     *policy.Config
	debugLog   func(format string, args ...any)
}

// New creates a Formulator. A nil policy uses policy.Default(); unset or
// invalid values are reset to their defaults.
func New(plans store.PlanStore, strategies store.StrategyStore, cfg *policy.Config) *Formulator {
	if cfg == nil {
		cfg = policy.Default()
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("[strategy] invalid policy (%v), using default fallback", err)
		cfg.Fallback = policy.Default().Fallback
	}
	return &Formulator{
		plans:      plans,
		strategies: strategies,
		policy:     cfg,
		debugLog:   func(format string, args ...any) {},
	}
}

// SetDebugLog sets the debug logging function.
func (f *Formulator) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		f.debugLog = fn
	}
}

// DetermineExecutionLevels groups tasks by longest-path level. Tasks in one
// level run concurrently; ties are ordered by ascending task id.
func (f *Formulator) DetermineExecutionLevels(plan *models.Plan) ([][]string, error) {
	g, err := graph.FromTasks(plan.Tasks)
	if err != nil {
		return nil, fmt.Errorf("determine execution levels: %w", err)
	}
	return g.Levels(), nil
}

// AllocateResources assigns tasks to resource types round robin by task
// index. Every configured type is present in the result, possibly empty.
func (f *Formulator) AllocateResources(plan *models.Plan) map[string][]string {
	types := f.policy.Strategy.ResourceTypes
	if len(types) == 0 {
		types = policy.Default().Strategy.ResourceTypes
	}
	alloc := make(map[string][]string, len(types))
	for _, rt := range types {
		alloc[rt] = []string{}
	}
	for i, task := range plan.Tasks {
		rt := types[i%len(types)]
		alloc[rt] = append(alloc[rt], task.ID)
	}
	return alloc
}

// EstimateTimeline maps effort to days and reports the critical path.
// The estimate is the critical path length, not the sum of all tasks.
func (f *Formulator) EstimateTimeline(plan *models.Plan) (models.Timeline, error) {
	g, err := graph.FromTasks(plan.Tasks)
	if err != nil {
		return models.Timeline{}, fmt.Errorf("estimate timeline: %w", err)
	}

	durations := make(map[string]int, len(plan.Tasks))
	for _, task := range plan.Tasks {
		durations[task.ID] = f.policy.DaysFor(task.EstimatedEffort)
	}
	total, path := g.CriticalPath(func(id string) int { return durations[id] })

	return models.Timeline{
		EstimatedDays: total,
		TaskDurations: durations,
		CriticalPath:  path,
	}, nil
}

// DefineFallbacks returns the fallback policy of every task: its own
// override when set, otherwise the configured default.
func (f *Formulator) DefineFallbacks(plan *models.Plan) map[string]models.FallbackPolicy {
	out := make(map[string]models.FallbackPolicy, len(plan.Tasks))
	for _, task := range plan.Tasks {
		if task.Fallback != nil {
			fb := *task.Fallback
			if fb.MaxRetries < 0 {
				fb.MaxRetries = 0
			}
			if fb.SkipCondition == "" {
				fb.SkipCondition = models.SkipNever
			}
			out[task.ID] = fb
			continue
		}
		out[task.ID] = f.policy.FallbackFor(task.Title)
	}
	return out
}

// Build composes a strategy for the plan without storing anything.
func (f *Formulator) Build(plan *models.Plan) (*models.Strategy, error) {
	levels, err := f.DetermineExecutionLevels(plan)
	if err != nil {
		return nil, err
	}
	timeline, err := f.EstimateTimeline(plan)
	if err != nil {
		return nil, err
	}
	return &models.Strategy{
		ID:                 uuid.New().String(),
		PlanID:             plan.ID,
		Levels:             levels,
		ResourceAllocation: f.AllocateResources(plan),
		Timeline:           timeline,
		Fallbacks:          f.DefineFallbacks(plan),
		CreatedAt:          time.Now(),
	}, nil
}

// Formulate builds and stores a strategy for a stored plan, attaches it to
// the plan and moves the plan to strategized.
func (f *Formulator) Formulate(planID string) (*models.Strategy, error) {
	var strategy *models.Strategy
	err := f.plans.UpdatePlan(planID, func(p *models.Plan) error {
		switch p.Status {
		case models.PlanStatusCreated, models.PlanStatusStrategized, models.PlanStatusAdapted:
		default:
			return fmt.Errorf("%w: plan %s is %s and cannot be strategized", models.ErrValidation, p.ID, p.Status)
		}

		s, err := f.Build(p)
		if err != nil {
			return err
		}
		if err := f.strategies.CreateStrategy(s); err != nil {
			return fmt.Errorf("store strategy: %w", err)
		}
		p.StrategyID = s.ID
		p.Status = models.PlanStatusStrategized
		strategy = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("formulate plan %s: %w", planID, err)
	}

	f.debugLog("[strategy] plan %s -> strategy %s: %d levels, %d days", planID, strategy.ID,
		len(strategy.Levels), strategy.Timeline.EstimatedDays)
	return strategy, nil
}
