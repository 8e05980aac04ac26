package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/Rick1330/Nexus-Framework/internal/agent"
	"github.com/Rick1330/Nexus-Framework/internal/api"
	"github.com/Rick1330/Nexus-Framework/internal/config"
	"github.com/Rick1330/Nexus-Framework/internal/exec"
)

// defaultAgentDelay keeps simulated runs visible in the TUI.
const defaultAgentDelay = 300 * time.Millisecond

// buildAgents creates the agents declared in a requirements file. With no
// declarations a single simulated agent holding every capability the goal
// asks for is used. Relative command workdirs resolve against baseDir.
func buildAgents(cfg *config.Config, specs []agentSpec, goalCaps []string, baseDir string) ([]agent.Agent, error) {
	if len(specs) == 0 {
		return []agent.Agent{agent.NewSimulated("local-1", goalCaps, defaultAgentDelay)}, nil
	}

	var client api.Completer
	runner := exec.NewRunner()
	agents := make([]agent.Agent, 0, len(specs))
	for _, spec := range specs {
		switch spec.Kind {
		case "claude":
			if client == nil {
				c, err := newAPIClient(cfg)
				if err != nil {
					return nil, err
				}
				client = c
			}
			agents = append(agents, agent.NewClaudeAgent(spec.ID, spec.Capabilities, client))
		case "command":
			dir := spec.WorkDir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(baseDir, dir)
			}
			agents = append(agents, agent.NewCommand(spec.ID, spec.Capabilities, spec.Command, dir, runner))
		default:
			delay := spec.Delay
			if delay == 0 {
				delay = defaultAgentDelay
			}
			sim := agent.NewSimulated(spec.ID, spec.Capabilities, delay)
			for taskID, n := range spec.Fail {
				sim.FailTask(taskID, n)
			}
			agents = append(agents, sim)
		}
	}
	return agents, nil
}

// newAPIClient creates the Anthropic client used by Claude agents.
func newAPIClient(cfg *config.Config) (*api.Client, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("claude agents need credentials: %w", err)
	}
	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}
