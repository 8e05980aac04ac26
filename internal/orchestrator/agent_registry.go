package orchestrator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// registeredAgent pairs an agent with the orchestrator's view of it.
type registeredAgent struct {
	agent agent.Agent
	reg   models.AgentRegistration
}

// AgentRegistry tracks registered agents and their availability.
// Only the orchestrator changes an agent's status.
type AgentRegistry struct {
	agents map[string]*registeredAgent
	mu     sync.RWMutex
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		agents: make(map[string]*registeredAgent),
	}
}

// Register adds an available agent. An existing registration is never
// replaced.
func (r *AgentRegistry) Register(a agent.Agent) error {
	if a == nil || a.ID() == "" {
		return fmt.Errorf("%w: agent must have an id", models.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID()]; exists {
		return fmt.Errorf("%w: %s", models.ErrDuplicateAgent, a.ID())
	}
	r.agents[a.ID()] = &registeredAgent{
		agent: a,
		reg: models.AgentRegistration{
			AgentID:      a.ID(),
			Capabilities: a.Capabilities(),
			Status:       models.AgentStatusAvailable,
			LastUpdated:  time.Now(),
		},
	}
	return nil
}

// Unregister removes an agent. Busy agents cannot be removed.
func (r *AgentRegistry) Unregister(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ra, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: agent %s", models.ErrNotFound, agentID)
	}
	if ra.reg.Status == models.AgentStatusBusy {
		return fmt.Errorf("%w: agent %s is busy with %s", models.ErrValidation, agentID, ra.reg.CurrentExecution)
	}
	delete(r.agents, agentID)
	return nil
}

// SetStatus marks an idle agent available or unavailable. Busy is set by
// scheduling only.
func (r *AgentRegistry) SetStatus(agentID string, status models.AgentStatus) error {
	if status != models.AgentStatusAvailable && status != models.AgentStatusUnavailable {
		return fmt.Errorf("%w: agent status %q cannot be set directly", models.ErrValidation, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ra, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: agent %s", models.ErrNotFound, agentID)
	}
	if ra.reg.Status == models.AgentStatusBusy {
		return fmt.Errorf("%w: agent %s is busy", models.ErrValidation, agentID)
	}
	ra.reg.Status = status
	ra.reg.LastUpdated = time.Now()
	return nil
}

// Get returns a registration snapshot.
func (r *AgentRegistry) Get(agentID string) (models.AgentRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ra, ok := r.agents[agentID]
	if !ok {
		return models.AgentRegistration{}, false
	}
	return snapshotRegistration(ra.reg), true
}

// All returns registration snapshots ordered by agent id.
func (r *AgentRegistry) All() []models.AgentRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AgentRegistration, 0, len(r.agents))
	for _, id := range r.sortedIDsLocked() {
		out = append(out, snapshotRegistration(r.agents[id].reg))
	}
	return out
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// reserve marks the first available agent, in id order, that can handle
// required as busy with execID. Unavailable agents are not considered.
// It fails with ErrScheduling when no agent is capable and ErrNoCapacity
// when every capable agent is busy.
func (r *AgentRegistry) reserve(required []string, execID string) (agent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capable := 0
	for _, id := range r.sortedIDsLocked() {
		ra := r.agents[id]
		if ra.reg.Status == models.AgentStatusUnavailable || !ra.agent.CanHandle(required) {
			continue
		}
		capable++
		if ra.reg.Status != models.AgentStatusAvailable {
			continue
		}
		ra.reg.Status = models.AgentStatusBusy
		ra.reg.CurrentExecution = execID
		ra.reg.LastUpdated = time.Now()
		return ra.agent, nil
	}

	if capable == 0 {
		return nil, fmt.Errorf("%w: no agent can handle capabilities %v", models.ErrScheduling, required)
	}
	return nil, models.ErrNoCapacity
}

// release frees an agent if it is still busy with execID.
func (r *AgentRegistry) release(agentID, execID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ra, ok := r.agents[agentID]
	if !ok || ra.reg.CurrentExecution != execID {
		return
	}
	ra.reg.Status = models.AgentStatusAvailable
	ra.reg.CurrentExecution = ""
	ra.reg.LastUpdated = time.Now()
}

func (r *AgentRegistry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func snapshotRegistration(reg models.AgentRegistration) models.AgentRegistration {
	reg.Capabilities = append([]string(nil), reg.Capabilities...)
	return reg
}
