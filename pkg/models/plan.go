package models

import "time"

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	PlanStatusCreated     PlanStatus = "created"
	PlanStatusStrategized PlanStatus = "strategized"
	PlanStatusExecuting   PlanStatus = "executing"
	PlanStatusAdapted     PlanStatus = "adapted"
	PlanStatusCompleted   PlanStatus = "completed"
	PlanStatusFailed      PlanStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusCreated, PlanStatusStrategized, PlanStatusExecuting,
		PlanStatusAdapted, PlanStatusCompleted, PlanStatusFailed:
		return true
	default:
		return false
	}
}

// Plan is a goal decomposed into a dependency graph of tasks.
// The graph is derived from Task.DependsOn and is always acyclic.
type Plan struct {
	ID     string     `json:"id" yaml:"id"`
	GoalID string     `json:"goal_id" yaml:"goal_id"`
	Tasks  []*Task    `json:"tasks" yaml:"tasks"`
	Status PlanStatus `json:"status" yaml:"status"`
	// StrategyID is set by formulation and cleared by adaptation.
	StrategyID string `json:"strategy_id,omitempty" yaml:"strategy_id,omitempty"`
	// AdaptedFrom points at the plan this one was derived from.
	AdaptedFrom      string    `json:"adapted_from,omitempty" yaml:"adapted_from,omitempty"`
	AdaptationReason string    `json:"adaptation_reason,omitempty" yaml:"adaptation_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"updated_at"`
}

// Task returns the task with the given id, or nil.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TaskIDs returns task ids in plan order.
func (p *Plan) TaskIDs() []string {
	ids := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Tasks = make([]*Task, len(p.Tasks))
	for i, t := range p.Tasks {
		c.Tasks[i] = t.Clone()
	}
	return &c
}

// Progress summarises task states in a plan.
type Progress struct {
	Total      int     `json:"total"`
	Pending    int     `json:"pending"`
	InProgress int     `json:"in_progress"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Skipped    int     `json:"skipped"`
	Percent    float64 `json:"completion_percentage"`
}

// Progress counts tasks by status. Skipped tasks count towards completion.
func (p *Plan) Progress() Progress {
	pr := Progress{Total: len(p.Tasks)}
	for _, t := range p.Tasks {
		switch t.Status {
		case TaskStatusPending:
			pr.Pending++
		case TaskStatusInProgress:
			pr.InProgress++
		case TaskStatusCompleted:
			pr.Completed++
		case TaskStatusFailed:
			pr.Failed++
		case TaskStatusSkipped:
			pr.Skipped++
		}
	}
	if pr.Total > 0 {
		pr.Percent = float64(pr.Completed+pr.Skipped) / float64(pr.Total) * 100
	}
	return pr
}
