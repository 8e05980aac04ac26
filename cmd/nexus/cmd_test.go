package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/internal/config"
	"github.com/Rick1330/Nexus-Framework/internal/engine"
	"github.com/Rick1330/Nexus-Framework/internal/memory"
	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/internal/tools"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

func TestBuildAgentsDefault(t *testing.T) {
	agents, err := buildAgents(config.Default(), nil, []string{"data", "ml"}, t.TempDir())
	if err != nil {
		t.Fatalf("buildAgents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("got %d agents, want 1", len(agents))
	}
	if !agents[0].CanHandle([]string{"data", "ml"}) {
		t.Error("default agent should hold every goal capability")
	}
}

func TestBuildAgentsSimulated(t *testing.T) {
	specs := []agentSpec{
		{ID: "a1", Capabilities: []string{"go"}, Fail: map[string]int{"task_1": 2}},
		{ID: "a2", Kind: "simulated"},
		{ID: "a3", Kind: "command", Command: "make", WorkDir: "sub"},
	}
	agents, err := buildAgents(config.Default(), specs, nil, "/work")
	if err != nil {
		t.Fatalf("buildAgents: %v", err)
	}
	if len(agents) != 3 || agents[0].ID() != "a1" || agents[1].ID() != "a2" {
		t.Fatalf("unexpected agents %v", agents)
	}
	sim, ok := agents[0].(*agent.Simulated)
	if !ok {
		t.Fatalf("a1 is %T, want *agent.Simulated", agents[0])
	}
	if sim.CanHandle([]string{"rust"}) {
		t.Error("a1 should only handle go")
	}
	if _, ok := agents[2].(*agent.Command); !ok {
		t.Errorf("a3 is %T, want *agent.Command", agents[2])
	}
}

func TestBuildAgentsClaudeNeedsKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("NEXUS_ANTHROPIC_API_KEY", "")
	_, err := buildAgents(config.Default(), []agentSpec{{ID: "c1", Kind: "claude"}}, nil, "")
	if !errors.Is(err, config.ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestMemoryTool(t *testing.T) {
	reg := tools.NewRegistry()
	mem := memory.New(0)
	registerBuiltinTools(reg, mem)
	ctx := context.Background()

	out, err := reg.Execute(ctx, "memory", "store", map[string]any{"content": "schema uses snake_case"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if id, _ := out["id"].(string); id == "" {
		t.Error("store should return an id")
	}
	if mem.Len(memory.TierWorking) != 1 {
		t.Errorf("working tier has %d entries, want 1", mem.Len(memory.TierWorking))
	}

	out, err = reg.Execute(ctx, "memory", "search", map[string]any{"query": "SNAKE"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	results, _ := out["results"].([]string)
	if len(results) != 1 || !strings.Contains(results[0], "snake_case") {
		t.Errorf("search results = %v", results)
	}

	bad := []struct {
		action string
		params map[string]any
	}{
		{"store", map[string]any{}},
		{"store", map[string]any{"content": "x", "tier": "attic"}},
		{"forget", nil},
	}
	for _, b := range bad {
		if _, err := reg.Execute(ctx, "memory", b.action, b.params); err == nil {
			t.Errorf("%s %v should fail", b.action, b.params)
		}
	}
	if m, _ := reg.Metrics("memory"); m.Failures != len(bad) {
		t.Errorf("failures = %d, want %d", m.Failures, len(bad))
	}
}

func TestInitProject(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("bin/"), 0644); err != nil {
		t.Fatal(err)
	}
	initExample = true
	t.Cleanup(func() { initExample = false })

	if err := initProject(dir); err != nil {
		t.Fatalf("initProject: %v", err)
	}
	for _, p := range []string{".nexus/logs", ".nexus/signals", ".nexus.yaml", "goal.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Errorf("%s not created: %v", p, err)
		}
	}

	// A second run leaves the gitignore alone.
	if err := initProject(dir); err != nil {
		t.Fatalf("second initProject: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if n := strings.Count(string(data), ".nexus/"); n != 1 {
		t.Errorf(".nexus/ appears %d times in .gitignore", n)
	}
	if !strings.HasPrefix(string(data), "bin/\n") {
		t.Errorf("existing entries not kept: %q", data)
	}

	if _, err := config.LoadFromPath(filepath.Join(dir, ".nexus.yaml")); err != nil {
		t.Errorf("template does not load: %v", err)
	}
}

func TestRenderSubmission(t *testing.T) {
	e := engine.New()
	t.Cleanup(func() { e.Shutdown(context.Background()) })

	req, err := parseRequirements([]byte(exampleGoal))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := e.Prepare(req.Requirements)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	out := renderSubmission(sub)
	for _, want := range []string{"Ship the analytics pipeline", "Execution levels", "critical path"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, task := range sub.Plan.Tasks {
		if !strings.Contains(out, task.ID) {
			t.Errorf("output missing task %s", task.ID)
		}
	}
}

func TestParseDependencyEdit(t *testing.T) {
	tests := []struct {
		in      string
		task    string
		deps    []string
		wantErr bool
	}{
		{in: "task_3=task_1,task_2", task: "task_3", deps: []string{"task_1", "task_2"}},
		{in: " task_3 = task_1 , ", task: "task_3", deps: []string{"task_1"}},
		{in: "task_3=", task: "task_3"},
		{in: "task_3", wantErr: true},
		{in: "=task_1", wantErr: true},
	}
	for _, tt := range tests {
		task, deps, err := parseDependencyEdit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDependencyEdit(%q) error = %v", tt.in, err)
			continue
		}
		if task != tt.task || !slices.Equal(deps, tt.deps) {
			t.Errorf("parseDependencyEdit(%q) = %s %v, want %s %v", tt.in, task, deps, tt.task, tt.deps)
		}
	}
}

func TestApplyDependencyEdits(t *testing.T) {
	e := engine.New()
	t.Cleanup(func() { e.Shutdown(context.Background()) })

	req, err := parseRequirements([]byte(exampleGoal))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := e.Prepare(req.Requirements)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	edited, err := applyDependencyEdits(e, sub, []string{"task_3=task_1", "task_4="})
	if err != nil {
		t.Fatalf("applyDependencyEdits: %v", err)
	}
	if edited.Strategy.ID == sub.Strategy.ID || edited.Plan.StrategyID != edited.Strategy.ID {
		t.Errorf("expected a fresh strategy, plan=%s strategy=%s", edited.Plan.StrategyID, edited.Strategy.ID)
	}
	want := [][]string{{"task_1", "task_2", "task_4"}, {"task_3"}}
	if !reflect.DeepEqual(edited.Strategy.Levels, want) {
		t.Errorf("levels = %v, want %v", edited.Strategy.Levels, want)
	}

	if _, err := applyDependencyEdits(e, edited, []string{"task_1=task_3"}); !errors.Is(err, models.ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestReplanMovesSignalTarget(t *testing.T) {
	cfg := policy.Default()
	cfg.Fallback.MaxRetries = 1
	cfg.Loop.PollInterval = 5 * time.Millisecond
	e := engine.New(engine.WithPolicy(cfg))
	t.Cleanup(func() { e.Shutdown(context.Background()) })

	var attempts atomic.Int32
	a := agent.NewFunc("flaky", nil, func(ctx context.Context, req *agent.Request) (*agent.Result, error) {
		if n := attempts.Add(1); req.Task.Title == "transform" && n < 3 {
			return nil, errors.New("transform broke")
		}
		return &agent.Result{Output: "ok"}, nil
	})
	if err := e.RegisterAgent(a); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	sub, err := e.Prepare(map[string]any{
		"title":            "Nightly batch",
		"success_criteria": []any{"transform"},
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	s := &session{engine: e}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := execute(ctx, s, sub, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Succeeded() {
		t.Fatal("first run should fail")
	}
	if got := s.activePlan(); got != sub.Plan.ID {
		t.Errorf("active plan = %q, want %q", got, sub.Plan.ID)
	}

	out, err = replan(ctx, s, out, nil)
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	if out.Plan.ID == sub.Plan.ID {
		t.Fatal("replan should run a new plan")
	}
	if got := s.activePlan(); got != out.Plan.ID {
		t.Errorf("signals would cancel %q, want the replanned %q", got, out.Plan.ID)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{5, "5s"},
		{120, "2m"},
		{3600, "1h"},
		{3660, "1h1m"},
		{3 * 86400, "3d"},
	}
	for _, tt := range tests {
		if got := formatDuration(time.Duration(tt.secs) * time.Second); got != tt.want {
			t.Errorf("formatDuration(%ds) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
