package agent

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Rick1330/Nexus-Framework/internal/exec"
)

// maxCommandOutput bounds the output kept from one command run.
const maxCommandOutput = 4096

// Command runs a shell command for every task. The task is described to
// the command through NEXUS_* environment variables; a non-zero exit fails
// the attempt.
type Command struct {
	Base
	command string
	workDir string
	runner  exec.CommandRunner
}

// NewCommand creates an agent running command in workDir.
func NewCommand(id string, capabilities []string, command, workDir string, runner exec.CommandRunner) *Command {
	if runner == nil {
		runner = exec.NewRunner()
	}
	return &Command{Base: NewBase(id, capabilities), command: command, workDir: workDir, runner: runner}
}

// Process runs the command once for the attempt.
func (c *Command) Process(ctx context.Context, req *Request) (*Result, error) {
	out, err := c.runner.RunShell(ctx, c.workDir, c.command, commandEnv(req))
	text := tail(strings.TrimSpace(string(out)), maxCommandOutput)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if text != "" {
			return nil, fmt.Errorf("agent %s: %w: %s", c.ID(), err, text)
		}
		return nil, fmt.Errorf("agent %s: %w", c.ID(), err)
	}
	return &Result{Output: text}, nil
}

// commandEnv renders the request as environment variables. Parameter names
// are upper-cased with dashes and dots replaced by underscores.
func commandEnv(req *Request) []string {
	t := req.Task
	env := []string{
		"NEXUS_PLAN_ID=" + req.PlanID,
		"NEXUS_GOAL_ID=" + req.GoalID,
		"NEXUS_TASK_ID=" + t.ID,
		"NEXUS_TASK_TITLE=" + t.Title,
		"NEXUS_TASK_DESCRIPTION=" + t.Description,
		"NEXUS_TASK_APPROACH=" + t.Approach,
		"NEXUS_ATTEMPT=" + strconv.Itoa(req.Attempt),
	}
	name := strings.NewReplacer("-", "_", ".", "_")
	for _, k := range slices.Sorted(maps.Keys(req.Params)) {
		env = append(env, "NEXUS_PARAM_"+strings.ToUpper(name.Replace(k))+"="+req.Params[k])
	}
	return env
}

// tail keeps at most the last n bytes of s, cut on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + s[cut:]
}
