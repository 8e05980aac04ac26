package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been dispatched.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is with an agent.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed permanently.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was skipped by its fallback policy.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the task will never be dispatched again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusSkipped
}

// Satisfied returns true if dependents may treat the task as done.
func (s TaskStatus) Satisfied() bool {
	return s == TaskStatusCompleted || s == TaskStatusSkipped
}

// Effort is the coarse size estimate of a task.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Valid returns true if the effort is a known value.
func (e Effort) Valid() bool {
	switch e {
	case EffortLow, EffortMedium, EffortHigh:
		return true
	default:
		return false
	}
}

// Task represents a unit of work in a plan.
type Task struct {
	// ID is unique within the owning plan.
	ID string `json:"id" yaml:"id"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// DependsOn lists task IDs that must be satisfied before this task runs.
	// Only tasks defined earlier in the same plan may be referenced.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// RequiredCapabilities must all be advertised by the agent that runs the task.
	RequiredCapabilities []string `json:"required_capabilities,omitempty" yaml:"required_capabilities,omitempty"`
	// EstimatedEffort drives the timeline estimate.
	EstimatedEffort Effort `json:"estimated_effort" yaml:"estimated_effort"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status"`
	// RetryCount is the number of retries consumed so far.
	RetryCount int `json:"retry_count" yaml:"retry_count"`
	// Fallback overrides the default fallback policy when set.
	Fallback *FallbackPolicy `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	// Approach is an alternative approach assigned when the plan was adapted.
	Approach string `json:"approach,omitempty" yaml:"approach,omitempty"`
	// Error contains the last failure message, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.DependsOn = append([]string(nil), t.DependsOn...)
	c.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	if t.Fallback != nil {
		fb := *t.Fallback
		c.Fallback = &fb
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}
