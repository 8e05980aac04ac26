package agent

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

type fakeRunner struct {
	out     string
	err     error
	command string
	workDir string
	env     []string
}

func (f *fakeRunner) RunShell(ctx context.Context, workDir, command string, env []string) ([]byte, error) {
	f.command, f.workDir, f.env = command, workDir, env
	return []byte(f.out), f.err
}

func TestCommand_Process(t *testing.T) {
	runner := &fakeRunner{out: "  deployed\n"}
	c := NewCommand("cmd-1", []string{"deploy"}, "./deploy.sh", "/srv", runner)

	res, err := c.Process(context.Background(), &Request{
		Task:    &models.Task{ID: "task_2", Title: "Deploy", Approach: "blue/green"},
		PlanID:  "plan_1",
		Attempt: 2,
		Params:  map[string]string{"target-env": "prod", "region": "eu"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Output != "deployed" {
		t.Errorf("Output = %q", res.Output)
	}
	if runner.command != "./deploy.sh" || runner.workDir != "/srv" {
		t.Errorf("ran %q in %q", runner.command, runner.workDir)
	}
	for _, want := range []string{
		"NEXUS_TASK_ID=task_2",
		"NEXUS_TASK_APPROACH=blue/green",
		"NEXUS_PLAN_ID=plan_1",
		"NEXUS_ATTEMPT=2",
		"NEXUS_PARAM_TARGET_ENV=prod",
		"NEXUS_PARAM_REGION=eu",
	} {
		if !slices.Contains(runner.env, want) {
			t.Errorf("env missing %s: %v", want, runner.env)
		}
	}
}

func TestCommand_Failure(t *testing.T) {
	runner := &fakeRunner{out: "disk full", err: errors.New("exit status 1")}
	c := NewCommand("cmd-1", nil, "false", "", runner)

	_, err := c.Process(context.Background(), &Request{Task: &models.Task{ID: "task_1"}, Attempt: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "disk full") || !strings.Contains(err.Error(), "exit status 1") {
		t.Errorf("error = %q", err)
	}
}

func TestCommand_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCommand("cmd-1", nil, "sleep 1", "", &fakeRunner{err: errors.New("signal: killed")})

	_, err := c.Process(ctx, &Request{Task: &models.Task{ID: "task_1"}, Attempt: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTail(t *testing.T) {
	if got := tail("abcdef", 10); got != "abcdef" {
		t.Errorf("tail short = %q", got)
	}
	if got := tail("abcdef", 3); got != "...def" {
		t.Errorf("tail long = %q", got)
	}
	// é is two bytes, so the last 4 bytes of "xhéllo" start mid-rune.
	got := tail("xhéllo", 4)
	if got != "...llo" || !utf8.ValidString(got) {
		t.Errorf("tail multibyte = %q", got)
	}
	if got := tail("日本語", 4); got != "...語" {
		t.Errorf("tail cjk = %q", got)
	}
}
