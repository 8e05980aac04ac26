package main

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// requirementsFile is the YAML document accepted by `nexus run` and
// `nexus plan`. Everything other than params and agents is passed to goal
// interpretation untouched.
type requirementsFile struct {
	Requirements map[string]any
	Params       map[string]string
	Agents       []agentSpec
}

// agentSpec declares an agent for the run.
type agentSpec struct {
	ID           string         `yaml:"id"`
	Kind         string         `yaml:"kind"`
	Capabilities []string       `yaml:"capabilities"`
	Delay        time.Duration  `yaml:"delay"`
	Fail         map[string]int `yaml:"fail"`
	// Command and WorkDir configure command agents.
	Command string `yaml:"command"`
	WorkDir string `yaml:"workdir"`
}

func loadRequirements(path string) (*requirementsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirements: %w", err)
	}
	return parseRequirements(data)
}

func parseRequirements(data []byte) (*requirementsFile, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse requirements: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("requirements file is empty")
	}

	var extras struct {
		Params map[string]string `yaml:"params"`
		Agents []agentSpec       `yaml:"agents"`
	}
	if err := yaml.Unmarshal(data, &extras); err != nil {
		return nil, fmt.Errorf("parse params and agents: %w", err)
	}
	delete(raw, "params")
	delete(raw, "agents")

	for i, a := range extras.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agent %d has no id", i+1)
		}
		switch a.Kind {
		case "", "simulated", "claude":
		case "command":
			if a.Command == "" {
				return nil, fmt.Errorf("agent %s: command agents need a command", a.ID)
			}
		default:
			return nil, fmt.Errorf("agent %s: unknown kind %q (want simulated, claude or command)", a.ID, a.Kind)
		}
	}

	return &requirementsFile{
		Requirements: raw,
		Params:       extras.Params,
		Agents:       extras.Agents,
	}, nil
}
