// Package agent defines the contract between the orchestrator and the
// units that process tasks, plus the agents shipped with nexus.
package agent

import (
	"context"
	"slices"

	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/tools"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// Agent processes tasks. Process must honour ctx cancellation when it can;
// the orchestrator never force-terminates an agent.
type Agent interface {
	ID() string
	Capabilities() []string
	CanHandle(required []string) bool
	Process(ctx context.Context, req *Request) (*Result, error)
}

// Request is everything an agent gets for one task attempt.
type Request struct {
	Task    *models.Task
	PlanID  string
	GoalID  string
	Attempt int
	Params  map[string]string
	// Context is optional read-only context lookup.
	Context memory.Lookup
	// Tools is optional tool access.
	Tools tools.Invoker
}

// Result is the outcome of a successful task attempt.
type Result struct {
	Output     string
	TokensUsed int64
}

// Base carries the identity and capability set shared by all agents.
type Base struct {
	id   string
	caps []string
}

// NewBase creates a Base.
func NewBase(id string, capabilities []string) Base {
	return Base{id: id, caps: slices.Clone(capabilities)}
}

// ID returns the agent id.
func (b Base) ID() string { return b.id }

// Capabilities returns a copy of the capability set.
func (b Base) Capabilities() []string { return slices.Clone(b.caps) }

// CanHandle reports whether every required capability is advertised.
func (b Base) CanHandle(required []string) bool {
	return models.HasCapabilities(b.caps, required)
}

// ProcessFunc is the signature of Func agents.
type ProcessFunc func(ctx context.Context, req *Request) (*Result, error)

// Func adapts a plain function to the Agent interface.
type Func struct {
	Base
	fn ProcessFunc
}

// NewFunc creates an agent backed by fn.
func NewFunc(id string, capabilities []string, fn ProcessFunc) *Func {
	return &Func{Base: NewBase(id, capabilities), fn: fn}
}

// Process calls the wrapped function.
func (f *Func) Process(ctx context.Context, req *Request) (*Result, error) {
	return f.fn(ctx, req)
}
