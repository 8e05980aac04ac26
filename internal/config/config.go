// Package config handles configuration loading and management for Nexus.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Rick1330/Nexus-Framework/internal/orchestrator/policy"
	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// ProjectConfigName is the project override file searched for upwards from
// the working directory.
const ProjectConfigName = ".nexus.yaml"

// Config holds all configuration for Nexus.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Strategy     StrategyConfig     `mapstructure:"strategy"`
	Fallback     FallbackConfig     `mapstructure:"fallback"`
	State        StateConfig        `mapstructure:"state"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	TUI          TUIConfig          `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings for Claude-backed agents.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OrchestratorConfig holds dispatch and run loop settings.
type OrchestratorConfig struct {
	MaxParallel  int           `mapstructure:"max_parallel"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	EventBuffer  int           `mapstructure:"event_buffer"`
}

// StrategyConfig holds strategy formulation settings.
type StrategyConfig struct {
	ResourceTypes []string `mapstructure:"resource_types"`
	// EffortDays maps low/medium/high to estimated days.
	EffortDays map[string]int `mapstructure:"effort_days"`
}

// FallbackConfig is the default failure policy for tasks without an override.
type FallbackConfig struct {
	Retry               bool   `mapstructure:"retry"`
	MaxRetries          int    `mapstructure:"max_retries"`
	SkipCondition       string `mapstructure:"skip_condition"`
	AlternativeApproach string `mapstructure:"alternative_approach"`
}

// StateConfig selects the journal database.
type StateConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	// Path overrides the default .nexus/state.db location.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	DebugLog string `mapstructure:"debug_log"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, NEXUS_*)
// 2. Project config (.nexus.yaml in current directory or parent)
// 3. User config (~/.config/nexus/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path, ignoring user and
// project files.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.State.Path = expandEnv(cfg.State.Path)
	cfg.Logging.DebugLog = expandEnv(cfg.Logging.DebugLog)
	return cfg, nil
}

// bindEnv maps NEXUS_SECTION_KEY variables onto section.key.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("anthropic.api_key", "NEXUS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	dir := getUserConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveToPath(cfg, filepath.Join(dir, "config.yaml"))
}

// SaveToPath writes the configuration to path as YAML.
func SaveToPath(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("orchestrator.max_parallel", cfg.Orchestrator.MaxParallel)
	v.Set("orchestrator.task_timeout", cfg.Orchestrator.TaskTimeout.String())
	v.Set("orchestrator.poll_interval", cfg.Orchestrator.PollInterval.String())
	v.Set("orchestrator.event_buffer", cfg.Orchestrator.EventBuffer)
	v.Set("strategy.resource_types", cfg.Strategy.ResourceTypes)
	v.Set("strategy.effort_days", cfg.Strategy.EffortDays)
	v.Set("fallback.retry", cfg.Fallback.Retry)
	v.Set("fallback.max_retries", cfg.Fallback.MaxRetries)
	v.Set("fallback.skip_condition", cfg.Fallback.SkipCondition)
	v.Set("fallback.alternative_approach", cfg.Fallback.AlternativeApproach)
	v.Set("state.driver", cfg.State.Driver)
	v.Set("state.path", cfg.State.Path)
	v.Set("logging.debug_log", cfg.Logging.DebugLog)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfigAs(path)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Policy converts the orchestration sections into a validated policy.
// Out of range values fall back to the policy defaults; an unknown skip
// condition is reported as an error.
func (c *Config) Policy() (*policy.Config, error) {
	p := policy.Default()

	p.Scheduling.MaxParallel = c.Orchestrator.MaxParallel
	p.Scheduling.TaskTimeout = c.Orchestrator.TaskTimeout
	p.Loop.PollInterval = c.Orchestrator.PollInterval
	p.Loop.EventBufferSize = c.Orchestrator.EventBuffer

	if len(c.Strategy.ResourceTypes) > 0 {
		p.Strategy.ResourceTypes = append([]string(nil), c.Strategy.ResourceTypes...)
	}
	for name, days := range c.Strategy.EffortDays {
		effort := models.Effort(strings.ToLower(name))
		if !effort.Valid() {
			return nil, fmt.Errorf("%w: unknown effort level %q in strategy.effort_days", models.ErrValidation, name)
		}
		p.Strategy.EffortDays[effort] = days
	}

	p.Fallback.Retry = c.Fallback.Retry
	p.Fallback.MaxRetries = c.Fallback.MaxRetries
	p.Fallback.SkipCondition = models.SkipCondition(c.Fallback.SkipCondition)
	if c.Fallback.AlternativeApproach != "" {
		p.Fallback.AlternativeApproach = c.Fallback.AlternativeApproach
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return p, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("orchestrator.max_parallel", d.Orchestrator.MaxParallel)
	v.SetDefault("orchestrator.task_timeout", d.Orchestrator.TaskTimeout.String())
	v.SetDefault("orchestrator.poll_interval", d.Orchestrator.PollInterval.String())
	v.SetDefault("orchestrator.event_buffer", d.Orchestrator.EventBuffer)

	v.SetDefault("strategy.resource_types", d.Strategy.ResourceTypes)
	v.SetDefault("strategy.effort_days", d.Strategy.EffortDays)

	v.SetDefault("fallback.retry", d.Fallback.Retry)
	v.SetDefault("fallback.max_retries", d.Fallback.MaxRetries)
	v.SetDefault("fallback.skip_condition", d.Fallback.SkipCondition)
	v.SetDefault("fallback.alternative_approach", d.Fallback.AlternativeApproach)

	v.SetDefault("state.driver", d.State.Driver)
	v.SetDefault("state.path", "")

	v.SetDefault("logging.debug_log", "")

	v.SetDefault("tui.refresh_rate", d.TUI.RefreshRate.String())
}

// getUserConfigDir returns the XDG config directory for Nexus.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nexus")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "nexus")
	}
	return filepath.Join(home, ".config", "nexus")
}

// findProjectConfig searches for .nexus.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findProjectConfigFrom(cwd)
}

func findProjectConfigFrom(dir string) string {
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	p := policy.Default()
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Orchestrator: OrchestratorConfig{
			MaxParallel:  p.Scheduling.MaxParallel,
			TaskTimeout:  p.Scheduling.TaskTimeout,
			PollInterval: p.Loop.PollInterval,
			EventBuffer:  p.Loop.EventBufferSize,
		},
		Strategy: StrategyConfig{
			ResourceTypes: append([]string(nil), p.Strategy.ResourceTypes...),
			EffortDays: map[string]int{
				string(models.EffortLow):    p.Strategy.EffortDays[models.EffortLow],
				string(models.EffortMedium): p.Strategy.EffortDays[models.EffortMedium],
				string(models.EffortHigh):   p.Strategy.EffortDays[models.EffortHigh],
			},
		},
		Fallback: FallbackConfig{
			Retry:               p.Fallback.Retry,
			MaxRetries:          p.Fallback.MaxRetries,
			SkipCondition:       string(p.Fallback.SkipCondition),
			AlternativeApproach: p.Fallback.AlternativeApproach,
		},
		State: StateConfig{
			Driver: "sqlite",
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
