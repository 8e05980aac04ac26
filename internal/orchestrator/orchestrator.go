package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/internal/store"
	"github.com/Rick1330/Nexus-Framework/internal/tools"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// Orchestrator schedules tasks on agents and drives plan workflows.
// It is the single writer of task, execution and plan status while a plan
// runs; every plan change goes through store.PlanStore.UpdatePlan.
type Orchestrator struct {
	store     store.Store
	policy    *policy.Config
	registry  *AgentRegistry
	emitter   *EventEmitter
	pauseCtrl *PauseController
	logger    *DebugLogger
	journal   Journal
	memory    *memory.Store
	tools     tools.Invoker

	// sem bounds the number of tasks with an agent at the same time.
	sem *semaphore.Weighted
	// wg tracks run loops and dispatch goroutines.
	wg conc.WaitGroup

	// ctx is cancelled by Shutdown; runs and direct dispatches derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	runsMu sync.Mutex
	runs   map[string]*workflowRun

	// retryQueue holds retries outside a workflow that found no free agent.
	retryMu    sync.Mutex
	retryQueue []taskRef
}

type taskRef struct {
	planID string
	taskID string
}

// New creates an orchestrator over st. Invalid policy values are reset to
// their defaults; an invalid skip condition falls back to the default
// fallback policy.
func New(st store.Store, opts ...Option) *Orchestrator {
	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.policyConfig
	if cfg == nil {
		cfg = policy.Default()
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("[orchestrator] invalid policy (%v), using default fallback", err)
		cfg.Fallback = policy.Default().Fallback
	}

	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}
	setPackageLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:     st,
		policy:    cfg,
		registry:  NewAgentRegistry(),
		emitter:   NewEventEmitter(cfg.Loop.EventBufferSize, cfg.Loop.EventSendTimeout),
		pauseCtrl: NewPauseController(),
		logger:    logger,
		journal:   o.journal,
		memory:    o.memory,
		tools:     o.tools,
		sem:       semaphore.NewWeighted(int64(cfg.Scheduling.MaxParallel)),
		ctx:       ctx,
		cancel:    cancel,
		runs:      make(map[string]*workflowRun),
	}
}

// Policy returns the effective policy.
func (o *Orchestrator) Policy() *policy.Config {
	return o.policy
}

// RegisterAgent adds an agent. A duplicate id fails with ErrDuplicateAgent
// and leaves the existing registration in place.
func (o *Orchestrator) RegisterAgent(a agent.Agent) error {
	if err := o.registry.Register(a); err != nil {
		return err
	}
	o.logger.Log("[orchestrator] registered agent %s capabilities=%v", a.ID(), a.Capabilities())
	return nil
}

// UnregisterAgent removes an idle agent.
func (o *Orchestrator) UnregisterAgent(agentID string) error {
	return o.registry.Unregister(agentID)
}

// SetAgentStatus marks an idle agent available or unavailable.
func (o *Orchestrator) SetAgentStatus(agentID string, status models.AgentStatus) error {
	if err := o.registry.SetStatus(agentID, status); err != nil {
		return err
	}
	if status == models.AgentStatusAvailable {
		o.wakeAll()
	}
	return nil
}

// Agents returns registration snapshots ordered by id.
func (o *Orchestrator) Agents() []models.AgentRegistration {
	return o.registry.All()
}

// Events returns the event stream. Events are dropped if nobody reads it.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Pause stops dispatching new tasks in every workflow.
func (o *Orchestrator) Pause() {
	o.pauseCtrl.Pause()
}

// Resume continues dispatching after Pause.
func (o *Orchestrator) Resume() {
	o.pauseCtrl.Resume()
	o.wakeAll()
}

// IsPaused reports whether dispatch is paused.
func (o *Orchestrator) IsPaused() bool {
	return o.pauseCtrl.IsPaused()
}

// Shutdown cancels every workflow and waits for in-flight tasks to report
// back, or for ctx to end. The event channel is closed once everything has
// stopped.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.pauseCtrl.Stop()
	o.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if r := o.wg.WaitAndRecover(); r != nil {
			log.Printf("[orchestrator] recovered panic during shutdown: %v", r.AsError())
		}
	}()

	select {
	case <-done:
		o.emitter.Close()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

func (o *Orchestrator) emit(e Event) {
	o.emitter.Emit(e)
}

// recordPlan journals the current snapshot of a plan.
func (o *Orchestrator) recordPlan(planID string) {
	if o.journal == nil {
		return
	}
	p, err := o.store.GetPlan(planID)
	if err != nil {
		return
	}
	if err := o.journal.RecordPlan(p); err != nil {
		log.Printf("[orchestrator] warning: journal plan %s: %v", planID, err)
	}
}

// recordExecution journals the current snapshot of an execution.
func (o *Orchestrator) recordExecution(execID string) {
	if o.journal == nil {
		return
	}
	e, err := o.store.GetExecution(execID)
	if err != nil {
		return
	}
	if err := o.journal.RecordExecution(e); err != nil {
		log.Printf("[orchestrator] warning: journal execution %s: %v", execID, err)
	}
}
