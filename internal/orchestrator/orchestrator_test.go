package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/internal/store"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

func TestScheduleTask_NoCapableAgent(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	createPlan(t, st, "plan-1", &models.Task{ID: "task_1", RequiredCapabilities: []string{"X"}})

	_, err := o.ScheduleTask(context.Background(), "plan-1", "task_1")
	if !errors.Is(err, models.ErrScheduling) {
		t.Fatalf("expected ErrScheduling with no agents, got %v", err)
	}

	if err := o.RegisterAgent(agent.NewSimulated("a1", []string{"Y"}, 0)); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = o.ScheduleTask(context.Background(), "plan-1", "task_1")
	if !errors.Is(err, models.ErrScheduling) {
		t.Fatalf("expected ErrScheduling with no capable agent, got %v", err)
	}

	if execs := st.ListExecutions("plan-1"); len(execs) != 0 {
		t.Errorf("no execution may be created, got %d", len(execs))
	}
	plan, _ := st.GetPlan("plan-1")
	if plan.Task("task_1").Status != models.TaskStatusPending {
		t.Errorf("task status = %s, want pending", plan.Task("task_1").Status)
	}
	if reg, _ := o.registry.Get("a1"); reg.Status != models.AgentStatusAvailable {
		t.Errorf("agent status = %s, want available", reg.Status)
	}
}

func TestScheduleTask_AssignsAndCompletes(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	createPlan(t, st, "plan-1",
		&models.Task{ID: "task_1", RequiredCapabilities: []string{"go"}},
		&models.Task{ID: "task_2", RequiredCapabilities: []string{"go"}},
		&models.Task{ID: "task_3", RequiredCapabilities: []string{"go"}},
	)

	release := make(chan struct{})
	_ = o.RegisterAgent(blockingAgent("agent-b", release, "go", "sql"))
	_ = o.RegisterAgent(blockingAgent("agent-a", release, "go"))

	ctx := context.Background()
	exec1, err := o.ScheduleTask(ctx, "plan-1", "task_1")
	if err != nil {
		t.Fatalf("schedule task_1: %v", err)
	}
	exec2, err := o.ScheduleTask(ctx, "plan-1", "task_2")
	if err != nil {
		t.Fatalf("schedule task_2: %v", err)
	}
	if _, err := o.ScheduleTask(ctx, "plan-1", "task_3"); !errors.Is(err, models.ErrNoCapacity) {
		t.Fatalf("expected ErrNoCapacity, got %v", err)
	}

	report, err := o.ExecutionStatus(exec1)
	if err != nil {
		t.Fatalf("ExecutionStatus: %v", err)
	}
	if report.Execution.AgentID != "agent-a" {
		t.Errorf("task_1 went to %s, want agent-a (lowest id)", report.Execution.AgentID)
	}
	if report.Task.Status != models.TaskStatusInProgress {
		t.Errorf("task_1 status = %s, want in_progress", report.Task.Status)
	}
	for _, reg := range o.Agents() {
		if reg.Status != models.AgentStatusBusy {
			t.Errorf("agent %s status = %s, want busy", reg.AgentID, reg.Status)
		}
	}

	close(release)
	for _, id := range []string{exec1, exec2} {
		eventually(t, "execution "+id+" to complete", func() bool {
			e, _ := st.GetExecution(id)
			return e.Status == models.ExecutionCompleted
		})
	}
	eventually(t, "agents to be released", func() bool {
		for _, reg := range o.Agents() {
			if reg.Status != models.AgentStatusAvailable {
				return false
			}
		}
		return true
	})

	progress, err := o.PlanProgress("plan-1")
	if err != nil {
		t.Fatalf("PlanProgress: %v", err)
	}
	if progress.Completed != 2 || progress.Pending != 1 {
		t.Errorf("progress = %+v, want 2 completed 1 pending", progress)
	}
}

func TestScheduleTask_Rejections(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	createPlan(t, st, "plan-1",
		&models.Task{ID: "task_1"},
		&models.Task{ID: "task_2", DependsOn: []string{"task_1"}},
	)
	_ = o.RegisterAgent(agent.NewSimulated("a1", nil, 0))

	tests := []struct {
		name    string
		planID  string
		taskID  string
		wantErr error
	}{
		{"unknown plan", "missing", "task_1", models.ErrNotFound},
		{"unknown task", "plan-1", "task_9", models.ErrNotFound},
		{"unsatisfied dependency", "plan-1", "task_2", models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.ScheduleTask(context.Background(), tt.planID, tt.taskID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if reg, _ := o.registry.Get("a1"); reg.Status != models.AgentStatusAvailable {
		t.Error("a rejected schedule must release the agent")
	}
}

func TestHandleFailure_Errors(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	createPlan(t, st, "plan-1", &models.Task{ID: "task_1"})
	_ = o.RegisterAgent(agent.NewSimulated("a1", nil, 0))

	_, err := o.HandleFailure(context.Background(), "missing", models.ErrorInfo{Message: "boom"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	execID, err := o.ScheduleTask(context.Background(), "plan-1", "task_1")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	eventually(t, "execution to complete", func() bool {
		e, _ := st.GetExecution(execID)
		return e.Status == models.ExecutionCompleted
	})

	_, err = o.HandleFailure(context.Background(), execID, models.ErrorInfo{Message: "late"})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation for a resolved execution, got %v", err)
	}
}

func TestHandleFailure_RetriesOutsideWorkflow(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	createPlan(t, st, "plan-1", &models.Task{ID: "task_1"})
	sim := agent.NewSimulated("a1", nil, 0)
	sim.FailTask("task_1", 1)
	_ = o.RegisterAgent(sim)

	if _, err := o.ScheduleTask(context.Background(), "plan-1", "task_1"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	eventually(t, "task to complete after a retry", func() bool {
		p, _ := st.GetPlan("plan-1")
		return p.Task("task_1").Status == models.TaskStatusCompleted
	})

	execs := taskExecutions(st, "plan-1", "task_1")
	if len(execs) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(execs))
	}
	if execs[0].Status != models.ExecutionFailed || execs[0].ErrorInfo.Kind != models.ErrorKindAgent {
		t.Errorf("first attempt = %s %+v", execs[0].Status, execs[0].ErrorInfo)
	}
	if execs[1].Attempt != 2 || execs[1].Status != models.ExecutionCompleted {
		t.Errorf("second attempt = %d %s", execs[1].Attempt, execs[1].Status)
	}
	p, _ := st.GetPlan("plan-1")
	if p.Task("task_1").RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", p.Task("task_1").RetryCount)
	}
}

func TestHandleFailure_ExplicitCall(t *testing.T) {
	o, st := newTestOrchestrator(t, func(c *policy.Config) {
		c.Fallback.Retry = false
		c.Fallback.SkipCondition = models.SkipAlways
	})
	createPlan(t, st, "plan-1", &models.Task{ID: "task_1"}, &models.Task{ID: "task_2", DependsOn: []string{"task_1"}})
	release := make(chan struct{})
	_ = o.RegisterAgent(blockingAgent("a1", release))

	execID, err := o.ScheduleTask(context.Background(), "plan-1", "task_1")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	outcome, err := o.HandleFailure(context.Background(), execID, models.ErrorInfo{Message: "operator abort"})
	if err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}
	if outcome.Action != ActionSkip || outcome.Err != nil {
		t.Errorf("outcome = %+v, want skip", outcome)
	}

	e, _ := st.GetExecution(execID)
	if e.Status != models.ExecutionFailed || e.ErrorInfo.Kind != models.ErrorKindAgent {
		t.Errorf("execution = %s %+v", e.Status, e.ErrorInfo)
	}

	// The agent is still inside Process and stays reserved.
	if reg, _ := o.registry.Get("a1"); reg.Status != models.AgentStatusBusy {
		t.Errorf("agent status = %s, want busy until Process returns", reg.Status)
	}
	if _, err := o.ScheduleTask(context.Background(), "plan-1", "task_2"); !errors.Is(err, models.ErrNoCapacity) {
		t.Errorf("expected ErrNoCapacity while a1 is still working, got %v", err)
	}

	close(release)
	eventually(t, "a1 to be released", func() bool {
		reg, _ := o.registry.Get("a1")
		return reg.Status == models.AgentStatusAvailable
	})
	if e, _ := st.GetExecution(execID); e.Status != models.ExecutionFailed {
		t.Errorf("late result changed execution to %s", e.Status)
	}
	// task_2 may now run: a skipped dependency counts as satisfied.
	if _, err := o.ScheduleTask(context.Background(), "plan-1", "task_2"); err != nil {
		t.Errorf("schedule dependent of skipped task: %v", err)
	}
}

func TestHandleFailure_RetryWaitsForBusyAgent(t *testing.T) {
	o, st := newTestOrchestrator(t, func(c *policy.Config) {
		c.Fallback.Retry = true
		c.Fallback.MaxRetries = 1
	})
	createPlan(t, st, "plan-1", &models.Task{ID: "task_1"})

	release := make(chan struct{})
	var running, maxRunning, calls atomic.Int32
	_ = o.RegisterAgent(agent.NewFunc("a1", nil, func(ctx context.Context, req *agent.Request) (*agent.Result, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		if calls.Add(1) == 1 {
			<-release
		}
		return &agent.Result{Output: "ok"}, nil
	}))

	execID, err := o.ScheduleTask(context.Background(), "plan-1", "task_1")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	eventually(t, "first attempt to start", func() bool { return calls.Load() == 1 })

	outcome, err := o.HandleFailure(context.Background(), execID, models.ErrorInfo{Message: "stuck"})
	if err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}
	if outcome.Action != ActionRetry {
		t.Fatalf("action = %s, want retry", outcome.Action)
	}

	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("retry started while a1 was busy (%d calls)", got)
	}

	close(release)
	eventually(t, "retry to complete", func() bool {
		p, _ := st.GetPlan("plan-1")
		return p.Task("task_1").Status == models.TaskStatusCompleted
	})
	if m := maxRunning.Load(); m != 1 {
		t.Errorf("a1 ran %d tasks at once", m)
	}
	if execs := taskExecutions(st, "plan-1", "task_1"); len(execs) != 2 {
		t.Errorf("expected 2 executions, got %d", len(execs))
	}
}

func TestDispatch_AgentPanicIsAFailure(t *testing.T) {
	o, st := newTestOrchestrator(t, func(c *policy.Config) { c.Fallback.Retry = false })
	createPlan(t, st, "plan-1", &models.Task{ID: "task_1"})
	_ = o.RegisterAgent(agent.NewFunc("a1", nil, func(context.Context, *agent.Request) (*agent.Result, error) {
		panic("agent bug")
	}))

	execID, err := o.ScheduleTask(context.Background(), "plan-1", "task_1")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	eventually(t, "execution to fail", func() bool {
		e, _ := st.GetExecution(execID)
		return e.Status == models.ExecutionFailed
	})
	e, _ := st.GetExecution(execID)
	if !strings.Contains(e.ErrorInfo.Message, "panicked") {
		t.Errorf("ErrorInfo = %+v", e.ErrorInfo)
	}
	p, _ := st.GetPlan("plan-1")
	if p.Task("task_1").Status != models.TaskStatusFailed {
		t.Errorf("task status = %s, want failed", p.Task("task_1").Status)
	}
}

func TestDispatch_WritesOutputToMemory(t *testing.T) {
	st := store.NewMemory()
	mem := memory.New(0)
	o := New(st, WithMemory(mem))
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })

	createPlan(t, st, "plan-1", &models.Task{ID: "task_1"})
	var rec recorder
	_ = o.RegisterAgent(rec.agent("a1"))

	if _, err := o.ScheduleTask(context.Background(), "plan-1", "task_1"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	eventually(t, "output in memory", func() bool {
		return len(mem.Search("done task_1", memory.TierEpisodic, 1)) == 1
	})
}
