package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rick1330/Nexus-Framework/internal/config"
	"github.com/Rick1330/Nexus-Framework/internal/signals"
)

const (
	colorOK   = color.FgGreen
	colorWarn = color.FgYellow
)

var (
	initForce   bool
	initExample bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Nexus project",
	Long: `Initialize a directory for use with Nexus.

Creates the .nexus directory (journal, logs, signals), a .nexus.yaml
template and .gitignore entries.

Examples:
  nexus init              # Initialize current directory
  nexus init ./myproject  # Initialize specific directory
  nexus init --example    # Also write goal.yaml to try 'nexus run'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initExample, "example", false, "Write an example goal.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	fmt.Printf("Initializing Nexus in %s...\n\n", absPath)

	nexusDir := filepath.Join(absPath, ".nexus")
	if _, err := os.Stat(nexusDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if err := initProject(absPath); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err == nil {
		switch config.GetAPIKeySource(cfg) {
		case config.KeySourceNone:
			printStatus("⚠", "No Anthropic API key (only needed for claude agents)", colorWarn)
		case config.KeySourceBedrock:
			printStatus("✓", "Using AWS Bedrock credentials", colorOK)
		default:
			printStatus("✓", "Anthropic API key found", colorOK)
		}
	}

	fmt.Println()
	fmt.Println("Next: nexus plan goal.yaml, then nexus run goal.yaml")
	return nil
}

// initProject creates the .nexus layout and templates under dir.
func initProject(dir string) error {
	for _, d := range []string{filepath.Join(dir, ".nexus", "logs"), signals.Dir(dir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	printStatus("✓", "Created .nexus directory structure", colorOK)

	added, err := ensureGitignore(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return err
	}
	if added {
		printStatus("✓", "Updated .gitignore with Nexus entries", colorOK)
	}

	created, err := writeIfMissing(filepath.Join(dir, config.ProjectConfigName), projectConfigTemplate)
	if err != nil {
		return err
	}
	if created {
		printStatus("✓", "Created "+config.ProjectConfigName+" template", colorOK)
	}

	if initExample {
		created, err := writeIfMissing(filepath.Join(dir, "goal.yaml"), exampleGoal)
		if err != nil {
			return err
		}
		if created {
			printStatus("✓", "Created goal.yaml", colorOK)
		}
	}
	return nil
}

func ensureGitignore(path string) (bool, error) {
	const entry = ".nexus/"
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			return false, nil
		}
	}
	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "\n# Nexus\n" + entry + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}
	return true, nil
}

func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

const projectConfigTemplate = `# Nexus project configuration. Values here override ~/.config/nexus/config.yaml.
orchestrator:
  max_parallel: 4
  task_timeout: 10m

fallback:
  retry: true
  max_retries: 3
  skip_condition: non_critical

# state:
#   driver: sqlite3   # cgo driver; default is the pure Go "sqlite"
`

const exampleGoal = `title: Ship the analytics pipeline
description: Daily aggregates for the product dashboard
priority: high
success_criteria:
  - Ingest raw events
  - Transform into daily aggregates
  - Validate aggregates against source counts
  - Publish the dashboard
capabilities: [data]
params:
  env: staging
agents:
  - id: worker-1
    capabilities: [data]
  - id: worker-2
    capabilities: [data]
    delay: 500ms
`
