package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rick1330/Nexus-Framework/internal/config"
)

var (
	projectDir string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Goal planning and orchestration engine",
	Long: `Nexus turns a goal into a dependency-ordered plan of tasks, formulates an
execution strategy for it, and drives the plan across a pool of
capability-tagged agents.

Requirements are written as YAML:

  title: Ship the analytics pipeline
  success_criteria:
    - Ingest raw events
    - Transform into daily aggregates
    - Publish the dashboard
  capabilities: [data]
  params:
    env: staging
  agents:
    - id: worker-1
      capabilities: [data]

Run 'nexus plan <file>' to inspect the plan and strategy, and
'nexus run <file>' to execute it.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file to use instead of the user and project configs")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", "", "Project directory holding .nexus/ (default: current directory)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads --config when given, else the layered configuration.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// resolveProjectDir returns the --project flag or the working directory.
func resolveProjectDir() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}
