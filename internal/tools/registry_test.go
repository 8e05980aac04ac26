package tools

import (
	"context"
	"errors"
	"testing"
)

func echoHandler(_ context.Context, action string, params map[string]any) (map[string]any, error) {
	if action == "fail" {
		return nil, errors.New("tool failure")
	}
	return map[string]any{"action": action, "params": len(params)}, nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if !r.Register(Tool{ID: "echo", Name: "first"}, echoHandler) {
		t.Fatal("first registration should succeed")
	}
	if r.Register(Tool{ID: "echo", Name: "second"}, echoHandler) {
		t.Error("duplicate registration should return false")
	}
	if tool, _ := r.Get("echo"); tool.Name != "first" {
		t.Errorf("duplicate registration overwrote tool: %+v", tool)
	}
}

func TestExecuteRecordsMetrics(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{ID: "echo"}, echoHandler)
	ctx := context.Background()

	out, err := r.Execute(ctx, "echo", "run", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out["action"] != "run" {
		t.Errorf("unexpected result: %v", out)
	}
	if _, err := r.Execute(ctx, "echo", "fail", nil); err == nil {
		t.Error("expected handler error")
	}

	m, ok := r.Metrics("echo")
	if !ok {
		t.Fatal("metrics missing")
	}
	if m.Calls != 2 || m.Successes != 1 || m.Failures != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Execute(context.Background(), "ghost", "run", nil); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestListByCategory(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{ID: "b", Category: "vcs"}, echoHandler)
	r.Register(Tool{ID: "a", Category: "vcs"}, echoHandler)
	r.Register(Tool{ID: "c", Category: "http"}, echoHandler)

	vcs := r.List("vcs")
	if len(vcs) != 2 || vcs[0].ID != "a" {
		t.Errorf("List(vcs) = %+v", vcs)
	}
	if all := r.List(""); len(all) != 3 {
		t.Errorf("List(\"\") returned %d tools", len(all))
	}
}
