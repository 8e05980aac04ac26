package orchestrator

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// AdaptPlan derives a new plan from a plan that is not executing. The new
// plan copies the tasks and their statuses, records where it came from and
// why, and has no strategy: it must be strategized before it can run.
// Failed tasks are given their fallback's alternative approach.
// The source plan is not modified.
func (o *Orchestrator) AdaptPlan(planID, reason string) (*models.Plan, error) {
	src, err := o.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if src.Status == models.PlanStatusExecuting || o.IsRunning(planID) {
		return nil, fmt.Errorf("%w: plan %s is still executing", models.ErrAdaptation, planID)
	}

	strategy := o.strategyFor(src)
	now := time.Now()

	adapted := src.Clone()
	adapted.ID = uuid.NewString()
	adapted.AdaptedFrom = src.ID
	adapted.AdaptationReason = reason
	adapted.StrategyID = ""
	adapted.Status = models.PlanStatusAdapted
	adapted.CreatedAt = now
	adapted.UpdatedAt = now

	var reworked []string
	for _, t := range adapted.Tasks {
		if t.Status != models.TaskStatusFailed {
			continue
		}
		if alt := o.fallbackFor(strategy, t).AlternativeApproach; alt != "" {
			t.Approach = alt
			reworked = append(reworked, t.ID)
		}
	}

	if err := o.store.CreatePlan(adapted); err != nil {
		return nil, fmt.Errorf("%w: store adapted plan: %v", models.ErrAdaptation, err)
	}

	o.recordPlan(adapted.ID)
	o.emit(Event{
		Type:    EventPlanAdapted,
		PlanID:  adapted.ID,
		Message: fmt.Sprintf("Plan %s adapted from %s: %s", adapted.ID, src.ID, reason),
	})
	log.Printf("[orchestrator] plan %s adapted into %s (%d tasks with new approach)", src.ID, adapted.ID, len(reworked))
	return adapted, nil
}
