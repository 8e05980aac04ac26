package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventTaskScheduled indicates a task was assigned to an agent.
	EventTaskScheduled EventType = "task_scheduled"
	// EventTaskStarted indicates an agent started processing a task.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed permanently.
	EventTaskFailed EventType = "task_failed"
	// EventTaskRetrying indicates a failed task was reset for another attempt.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskSkipped indicates a failed task was skipped by its fallback policy.
	EventTaskSkipped EventType = "task_skipped"
	// EventWorkflowStarted indicates a plan started executing.
	EventWorkflowStarted EventType = "workflow_started"
	// EventWorkflowCompleted indicates every task of a plan is satisfied.
	EventWorkflowCompleted EventType = "workflow_completed"
	// EventWorkflowFailed indicates a plan failed or was cancelled.
	EventWorkflowFailed EventType = "workflow_failed"
	// EventPlanAdapted indicates a new plan was derived from a finished one.
	EventPlanAdapted EventType = "plan_adapted"
)

// Event is emitted by the orchestrator on every state change.
// Events feed the TUI and the CLI log; they are never required for correctness.
type Event struct {
	Type        EventType
	PlanID      string
	TaskID      string
	TaskTitle   string
	ExecutionID string
	AgentID     string
	// Attempt is the 1-based attempt number for task events.
	Attempt int
	Message string
	Error   error
	// TokensUsed is reported by agents that call a model.
	TokensUsed int64
	// Duration is the processing time for completed and failed tasks.
	Duration  time.Duration
	Timestamp time.Time
}
