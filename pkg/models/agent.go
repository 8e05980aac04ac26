package models

import "time"

// AgentStatus represents the availability of a registered agent.
type AgentStatus string

const (
	// AgentStatusAvailable indicates the agent can accept a task.
	AgentStatusAvailable AgentStatus = "available"
	// AgentStatusBusy indicates the agent is running a task.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusUnavailable indicates the agent was taken out of rotation.
	AgentStatusUnavailable AgentStatus = "unavailable"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusAvailable, AgentStatusBusy, AgentStatusUnavailable:
		return true
	default:
		return false
	}
}

// AgentRegistration is the orchestrator's view of an agent.
type AgentRegistration struct {
	AgentID      string      `json:"agent_id"`
	Capabilities []string    `json:"capabilities"`
	Status       AgentStatus `json:"status"`
	// CurrentExecution is the execution the agent is busy with.
	CurrentExecution string    `json:"current_execution,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

// HasCapabilities reports whether caps is a superset of required.
// An empty requirement is satisfied by every agent.
func HasCapabilities(caps, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		have[c] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}
