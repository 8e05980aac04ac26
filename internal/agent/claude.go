package agent

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Rick1330/Nexus-Framework/internal/api"
)

const claudeSystemPrompt = `You are one agent in a team executing a plan task by task.
Work only on the task you are given. Reply with a concise report of what you did
and any result other tasks will need. If the task cannot be done, start your reply
with "FAILED:" followed by the reason.`

// contextItems is how many context entries are added to each prompt.
const contextItems = 5

// ClaudeAgent processes tasks with a Claude model.
type ClaudeAgent struct {
	Base
	client api.Completer
}

// NewClaudeAgent creates an agent that sends each task to client.
func NewClaudeAgent(id string, capabilities []string, client api.Completer) *ClaudeAgent {
	return &ClaudeAgent{Base: NewBase(id, capabilities), client: client}
}

// Process builds a prompt from the task and available context and asks the
// model to carry it out. A reply starting with FAILED: is an error.
func (c *ClaudeAgent) Process(ctx context.Context, req *Request) (*Result, error) {
	resp, err := c.client.Complete(ctx, claudeSystemPrompt, buildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", c.ID(), err)
	}

	text := strings.TrimSpace(resp.Text)
	if reason, failed := strings.CutPrefix(text, "FAILED:"); failed {
		return nil, fmt.Errorf("agent %s reported failure: %s", c.ID(), strings.TrimSpace(reason))
	}
	return &Result{Output: text, TokensUsed: resp.InputTokens + resp.OutputTokens}, nil
}

func buildPrompt(req *Request) string {
	var b strings.Builder
	t := req.Task
	fmt.Fprintf(&b, "Task %s: %s\n", t.ID, t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if t.Approach != "" {
		fmt.Fprintf(&b, "Approach: %s\n", t.Approach)
	}
	if req.Attempt > 1 {
		fmt.Fprintf(&b, "This is attempt %d. Previous error: %s\n", req.Attempt, t.Error)
	}
	for _, k := range slices.Sorted(maps.Keys(req.Params)) {
		fmt.Fprintf(&b, "Parameter %s=%s\n", k, req.Params[k])
	}

	if req.Context != nil {
		entries := req.Context.Search("", "", contextItems)
		if len(entries) > 0 {
			b.WriteString("\nContext from earlier tasks:\n")
			for _, e := range entries {
				fmt.Fprintf(&b, "- %s\n", e.String())
			}
		}
	}
	return b.String()
}
