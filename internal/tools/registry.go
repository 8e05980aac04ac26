// Package tools dispatches tool invocations by id and action and keeps
// per-tool usage metrics.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// ErrUnknownTool is returned when executing a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Handler performs an action with parameters and returns a result.
type Handler func(ctx context.Context, action string, params map[string]any) (map[string]any, error)

// Tool describes a registered tool.
type Tool struct {
	ID          string
	Name        string
	Description string
	Category    string
	Actions     []string
}

// Metrics are the usage counters of one tool.
type Metrics struct {
	Calls          int
	Successes      int
	Failures       int
	AverageLatency time.Duration
	totalLatency   time.Duration
}

// Invoker is the view of the registry handed to agents.
type Invoker interface {
	Execute(ctx context.Context, toolID, action string, params map[string]any) (map[string]any, error)
}

type registration struct {
	tool    Tool
	handler Handler
	metrics Metrics
}

// Registry holds tools and their handlers.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration
}

var _ Invoker = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registration)}
}

// Register adds a tool. It returns false and leaves the existing tool in
// place when the id is already registered.
func (r *Registry) Register(tool Tool, handler Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.ID]; exists {
		log.Printf("[tools] tool %s already registered", tool.ID)
		return false
	}
	r.tools[tool.ID] = &registration{tool: tool, handler: handler}
	return true
}

// Get returns a registered tool.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[id]
	if !ok {
		return Tool{}, false
	}
	return reg.tool, true
}

// List returns registered tools sorted by id, optionally filtered by category.
func (r *Registry) List(category string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, reg := range r.tools {
		if category == "" || reg.tool.Category == category {
			out = append(out, reg.tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Execute runs an action on a tool and records the outcome in its metrics.
func (r *Registry) Execute(ctx context.Context, toolID, action string, params map[string]any) (map[string]any, error) {
	r.mu.RLock()
	reg, ok := r.tools[toolID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
	}

	start := time.Now()
	result, err := reg.handler(ctx, action, params)
	elapsed := time.Since(start)

	r.mu.Lock()
	m := &reg.metrics
	m.Calls++
	m.totalLatency += elapsed
	m.AverageLatency = m.totalLatency / time.Duration(m.Calls)
	if err != nil {
		m.Failures++
	} else {
		m.Successes++
	}
	r.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("tool %s action %s: %w", toolID, action, err)
	}
	return result, nil
}

// Metrics returns the usage counters of a tool.
func (r *Registry) Metrics(toolID string) (Metrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[toolID]
	if !ok {
		return Metrics{}, false
	}
	return reg.metrics, true
}
