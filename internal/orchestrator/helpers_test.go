package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/internal/store"
	"github.com/Rick1330/Nexus-Framework/internal/strategy"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

func newTestOrchestrator(t *testing.T, mutate func(*policy.Config)) (*Orchestrator, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	cfg := policy.Default()
	cfg.Loop.PollInterval = 5 * time.Millisecond
	cfg.Loop.EventSendTimeout = time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	o := New(st, WithPolicy(cfg))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o, st
}

func createPlan(t *testing.T, st *store.Memory, id string, tasks ...*models.Task) {
	t.Helper()
	for _, task := range tasks {
		if task.Title == "" {
			task.Title = "do " + task.ID
		}
		if task.Status == "" {
			task.Status = models.TaskStatusPending
		}
		if task.EstimatedEffort == "" {
			task.EstimatedEffort = models.EffortMedium
		}
	}
	plan := &models.Plan{ID: id, GoalID: "goal-1", Tasks: tasks, Status: models.PlanStatusCreated, CreatedAt: time.Now()}
	if err := st.CreatePlan(plan); err != nil {
		t.Fatalf("create plan: %v", err)
	}
}

func strategize(t *testing.T, o *Orchestrator, st *store.Memory, planID string) *models.Strategy {
	t.Helper()
	s, err := strategy.New(st, st, o.Policy()).Formulate(planID)
	if err != nil {
		t.Fatalf("formulate: %v", err)
	}
	return s
}

// slidingWindowTasks mirrors the decomposer: every task from the third on
// depends on the two before it.
func slidingWindowTasks() []*models.Task {
	return []*models.Task{
		{ID: "task_1"},
		{ID: "task_2"},
		{ID: "task_3", DependsOn: []string{"task_1", "task_2"}},
		{ID: "task_4", DependsOn: []string{"task_2", "task_3"}},
		{ID: "task_5", DependsOn: []string{"task_3", "task_4"}},
	}
}

func waitForPlan(t *testing.T, o *Orchestrator, planID string) *models.Plan {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Wait(ctx, planID); err != nil {
		t.Fatalf("wait for plan %s: %v", planID, err)
	}
	plan, err := o.store.GetPlan(planID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	return plan
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func taskExecutions(st *store.Memory, planID, taskID string) []*models.Execution {
	var out []*models.Execution
	for _, e := range st.ListExecutions(planID) {
		if e.Kind == models.ExecutionKindTask && e.TargetID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// recorder is an agent that logs the order in which tasks finish.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) agent(id string, caps ...string) *agent.Func {
	return agent.NewFunc(id, caps, func(ctx context.Context, req *agent.Request) (*agent.Result, error) {
		r.mu.Lock()
		r.order = append(r.order, req.Task.ID)
		r.mu.Unlock()
		return &agent.Result{Output: "done " + req.Task.ID}, nil
	})
}

func (r *recorder) position(taskID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range r.order {
		if id == taskID {
			return i
		}
	}
	return -1
}

// blockingAgent holds every task until release is closed or ctx ends.
func blockingAgent(id string, release <-chan struct{}, caps ...string) *agent.Func {
	return agent.NewFunc(id, caps, func(ctx context.Context, req *agent.Request) (*agent.Result, error) {
		select {
		case <-release:
			return &agent.Result{Output: "released"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
