package state

import (
	"errors"
	"testing"
	"time"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

func samplePlan(status models.PlanStatus) *models.Plan {
	now := time.Now()
	return &models.Plan{
		ID:     "plan-1",
		GoalID: "goal-1",
		Status: status,
		Tasks: []*models.Task{
			{ID: "task_1", Title: "a", Status: models.TaskStatusCompleted, EstimatedEffort: models.EffortLow},
			{ID: "task_2", Title: "b", Status: models.TaskStatusPending, DependsOn: []string{"task_1"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRecordPlan_Upsert(t *testing.T) {
	db := setupTestDB(t)

	p := samplePlan(models.PlanStatusExecuting)
	if err := db.RecordPlan(p); err != nil {
		t.Fatalf("RecordPlan: %v", err)
	}
	p.Status = models.PlanStatusCompleted
	p.Tasks[1].Status = models.TaskStatusCompleted
	p.UpdatedAt = p.UpdatedAt.Add(time.Second)
	if err := db.RecordPlan(p); err != nil {
		t.Fatalf("RecordPlan update: %v", err)
	}

	got, err := db.GetPlan("plan-1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Status != models.PlanStatusCompleted || got.Task("task_2").Status != models.TaskStatusCompleted {
		t.Errorf("stale snapshot: %s / %s", got.Status, got.Task("task_2").Status)
	}
	if deps := got.Task("task_2").DependsOn; len(deps) != 1 || deps[0] != "task_1" {
		t.Errorf("dependencies lost: %v", deps)
	}

	summaries, err := db.ListPlans()
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(summaries))
	}
	if s := summaries[0]; s.TaskCount != 2 || s.Percent != 100 || s.Status != models.PlanStatusCompleted {
		t.Errorf("summary = %+v", s)
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetPlan("missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := db.GetExecution("missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordExecution(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now()

	execs := []*models.Execution{
		{ID: "e1", Kind: models.ExecutionKindWorkflow, TargetID: "plan-1", PlanID: "plan-1", Attempt: 1,
			Status: models.ExecutionRunning, CreatedAt: base, UpdatedAt: base},
		{ID: "e2", Kind: models.ExecutionKindTask, TargetID: "task_1", PlanID: "plan-1", AgentID: "a1", Attempt: 1,
			Status: models.ExecutionScheduled, CreatedAt: base.Add(time.Millisecond), UpdatedAt: base},
		{ID: "e3", Kind: models.ExecutionKindTask, TargetID: "task_1", PlanID: "plan-2", AgentID: "a1", Attempt: 1,
			Status: models.ExecutionScheduled, CreatedAt: base, UpdatedAt: base},
	}
	for _, e := range execs {
		if err := db.RecordExecution(e); err != nil {
			t.Fatalf("RecordExecution %s: %v", e.ID, err)
		}
	}

	execs[1].Status = models.ExecutionFailed
	execs[1].ErrorInfo = &models.ErrorInfo{Kind: models.ErrorKindTimeout, Message: "too slow"}
	if err := db.RecordExecution(execs[1]); err != nil {
		t.Fatalf("RecordExecution update: %v", err)
	}

	got, err := db.GetExecution("e2")
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != models.ExecutionFailed || got.ErrorInfo == nil || got.ErrorInfo.Kind != models.ErrorKindTimeout {
		t.Errorf("execution = %+v", got)
	}
	if got.AgentID != "a1" || got.Kind != models.ExecutionKindTask {
		t.Errorf("execution fields lost: %+v", got)
	}

	list, err := db.ListExecutions("plan-1")
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "e1" || list[1].ID != "e2" {
		t.Errorf("ListExecutions(plan-1) = %v", list)
	}
	if list[0].ErrorInfo != nil {
		t.Error("running workflow should have no error info")
	}
}
