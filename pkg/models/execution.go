package models

import "time"

// ExecutionKind distinguishes single task runs from whole plan runs.
type ExecutionKind string

const (
	ExecutionKindTask     ExecutionKind = "task"
	ExecutionKindWorkflow ExecutionKind = "workflow"
)

// ExecutionStatus represents the state of an execution record.
type ExecutionStatus string

const (
	ExecutionScheduled ExecutionStatus = "scheduled"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// IsTerminal returns true for completed or failed executions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// Error kinds recorded in ErrorInfo.
const (
	ErrorKindAgent     = "agent_error"
	ErrorKindTimeout   = "timeout"
	ErrorKindCancelled = "cancelled"
	ErrorKindSchedule  = "scheduling"
	ErrorKindExhausted = "retry_exhausted"
)

// ErrorInfo describes why an execution failed.
type ErrorInfo struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// Execution records one attempt at running a task or a whole plan.
// Records are created once and only their status moves forward.
type Execution struct {
	ID   string        `json:"id" yaml:"id"`
	Kind ExecutionKind `json:"kind" yaml:"kind"`
	// TargetID is the task id for task executions and the plan id for workflows.
	TargetID  string            `json:"target_id" yaml:"target_id"`
	PlanID    string            `json:"plan_id" yaml:"plan_id"`
	AgentID   string            `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Attempt   int               `json:"attempt" yaml:"attempt"`
	Status    ExecutionStatus   `json:"status" yaml:"status"`
	ErrorInfo *ErrorInfo        `json:"error_info,omitempty" yaml:"error_info,omitempty"`
	Output    string            `json:"output,omitempty" yaml:"output,omitempty"`
	Params    map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a copy that shares nothing mutable with the original.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	c := *e
	if e.ErrorInfo != nil {
		ei := *e.ErrorInfo
		c.ErrorInfo = &ei
	}
	if e.Params != nil {
		c.Params = make(map[string]string, len(e.Params))
		for k, v := range e.Params {
			c.Params[k] = v
		}
	}
	return &c
}
