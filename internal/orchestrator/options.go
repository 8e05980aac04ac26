package orchestrator

import (
	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/internal/tools"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// Journal receives plan and execution snapshots after every change.
// Writes are best-effort: a journal error is logged, never returned.
type Journal interface {
	RecordPlan(p *models.Plan) error
	RecordExecution(e *models.Execution) error
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	policyConfig *policy.Config
	logger       *DebugLogger
	journal      Journal
	memory       *memory.Store
	tools        tools.Invoker
}

// WithPolicy sets the policy configuration. It is validated by New.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policyConfig = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithJournal records every plan and execution change.
func WithJournal(j Journal) Option {
	return func(o *orchestratorOptions) { o.journal = j }
}

// WithMemory shares a context store with agents. Task outputs are written
// to it as episodic entries.
func WithMemory(m *memory.Store) Option {
	return func(o *orchestratorOptions) { o.memory = m }
}

// WithTools gives agents access to a tool layer.
func WithTools(t tools.Invoker) Option {
	return func(o *orchestratorOptions) { o.tools = t }
}
