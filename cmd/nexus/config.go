package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rick1330/Nexus-Framework/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Nexus configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/nexus/config.yaml
Project-specific overrides can be placed in .nexus.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Printf("%s: %s\n", key, value)
			}
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if _, err := cfg.Policy(); err != nil {
				return err
			}
			if configPath != "" {
				err = config.SaveToPath(cfg, configPath)
			} else {
				err = config.Save(cfg)
			}
			if err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

// configKeys lists the keys shown by `nexus config`, in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"orchestrator.max_parallel",
	"orchestrator.task_timeout",
	"orchestrator.poll_interval",
	"orchestrator.event_buffer",
	"strategy.resource_types",
	"strategy.effort_days",
	"fallback.retry",
	"fallback.max_retries",
	"fallback.skip_condition",
	"fallback.alternative_approach",
	"state.driver",
	"state.path",
	"logging.debug_log",
	"tui.refresh_rate",
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "orchestrator.max_parallel":
		return strconv.Itoa(cfg.Orchestrator.MaxParallel), nil
	case "orchestrator.task_timeout":
		return cfg.Orchestrator.TaskTimeout.String(), nil
	case "orchestrator.poll_interval":
		return cfg.Orchestrator.PollInterval.String(), nil
	case "orchestrator.event_buffer":
		return strconv.Itoa(cfg.Orchestrator.EventBuffer), nil
	case "strategy.resource_types":
		return strings.Join(cfg.Strategy.ResourceTypes, ","), nil
	case "strategy.effort_days":
		return formatEffortDays(cfg.Strategy.EffortDays), nil
	case "fallback.retry":
		return strconv.FormatBool(cfg.Fallback.Retry), nil
	case "fallback.max_retries":
		return strconv.Itoa(cfg.Fallback.MaxRetries), nil
	case "fallback.skip_condition":
		return cfg.Fallback.SkipCondition, nil
	case "fallback.alternative_approach":
		return cfg.Fallback.AlternativeApproach, nil
	case "state.driver":
		return cfg.State.Driver, nil
	case "state.path":
		return cfg.State.Path, nil
	case "logging.debug_log":
		return cfg.Logging.DebugLog, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		cfg.Anthropic.UseBedrock, err = parseBool(key, value)
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "orchestrator.max_parallel":
		cfg.Orchestrator.MaxParallel, err = parseInt(key, value)
	case "orchestrator.task_timeout":
		cfg.Orchestrator.TaskTimeout, err = parseDuration(key, value)
	case "orchestrator.poll_interval":
		cfg.Orchestrator.PollInterval, err = parseDuration(key, value)
	case "orchestrator.event_buffer":
		cfg.Orchestrator.EventBuffer, err = parseInt(key, value)
	case "strategy.resource_types":
		var types []string
		for _, t := range strings.Split(value, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		cfg.Strategy.ResourceTypes = types
	case "strategy.effort_days":
		cfg.Strategy.EffortDays, err = parseEffortDays(value)
	case "fallback.retry":
		cfg.Fallback.Retry, err = parseBool(key, value)
	case "fallback.max_retries":
		cfg.Fallback.MaxRetries, err = parseInt(key, value)
	case "fallback.skip_condition":
		cfg.Fallback.SkipCondition = value
	case "fallback.alternative_approach":
		cfg.Fallback.AlternativeApproach = value
	case "state.driver":
		if value != "sqlite" && value != "sqlite3" {
			return fmt.Errorf("invalid value for state.driver: %q (want sqlite or sqlite3)", value)
		}
		cfg.State.Driver = value
	case "state.path":
		cfg.State.Path = value
	case "logging.debug_log":
		cfg.Logging.DebugLog = value
	case "tui.refresh_rate":
		cfg.TUI.RefreshRate, err = parseDuration(key, value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return b, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// parseEffortDays reads "low=1,medium=3,high=5".
func parseEffortDays(value string) (map[string]int, error) {
	days := make(map[string]int)
	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid effort_days entry %q (want effort=days)", pair)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid days for %s: %w", k, err)
		}
		days[strings.ToLower(k)] = n
	}
	return days, nil
}

func formatEffortDays(days map[string]int) string {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, days[k])
	}
	return strings.Join(parts, ",")
}
