// Package exec runs shell commands on behalf of command agents.
package exec

import (
	"context"
	"os"
	"os/exec"
)

// CommandRunner runs external commands. Tests substitute a fake.
type CommandRunner interface {
	// RunShell executes command through "sh -c" in workDir, with env added
	// to the inherited environment, and returns combined stdout/stderr.
	RunShell(ctx context.Context, workDir, command string, env []string) ([]byte, error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// RunShell executes a shell command. The process is killed when ctx ends.
func (r *ExecRunner) RunShell(ctx context.Context, workDir, command string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, err
}

var _ CommandRunner = (*ExecRunner)(nil)
