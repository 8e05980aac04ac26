// Package policy defines configurable policy parameters for planning and
// orchestration. It centralizes the constants used by strategy formulation
// and the run loop so they can be configured and tested.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// DefaultResourceTypes is the fixed set of resource types used for allocation.
var DefaultResourceTypes = []string{"developer", "data_engineer", "devops", "tester", "designer"}

// Config contains all configurable policy parameters.
type Config struct {
	// Scheduling policies
	Scheduling SchedulingPolicy

	// Strategy formulation policies
	Strategy StrategyPolicy

	// Default fallback applied to tasks without an override
	Fallback FallbackPolicy

	// Loop policies
	Loop LoopPolicy
}

// SchedulingPolicy controls task dispatch.
type SchedulingPolicy struct {
	// MaxParallel bounds the number of tasks processed at the same time.
	MaxParallel int

	// TaskTimeout is the per-task deadline. Zero disables it.
	TaskTimeout time.Duration
}

// StrategyPolicy controls strategy formulation.
type StrategyPolicy struct {
	// ResourceTypes are assigned round robin by task index.
	ResourceTypes []string

	// EffortDays maps effort to estimated duration in days.
	EffortDays map[models.Effort]int
}

// FallbackPolicy is the default per-task failure policy.
type FallbackPolicy struct {
	Retry      bool
	MaxRetries int
	// AlternativeApproach is a format string receiving the task title.
	AlternativeApproach string
	SkipCondition       models.SkipCondition
}

// LoopPolicy controls run loop behavior.
type LoopPolicy struct {
	// PollInterval is the delay between schedule checks when nothing changed.
	PollInterval time.Duration

	// EventBufferSize is the buffer size of the event channel.
	EventBufferSize int

	// EventSendTimeout is how long Emit waits on a full channel before dropping.
	EventSendTimeout time.Duration
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Scheduling: SchedulingPolicy{
			MaxParallel: 4,
			TaskTimeout: 0,
		},
		Strategy: StrategyPolicy{
			ResourceTypes: append([]string(nil), DefaultResourceTypes...),
			EffortDays: map[models.Effort]int{
				models.EffortLow:    1,
				models.EffortMedium: 2,
				models.EffortHigh:   3,
			},
		},
		Fallback: FallbackPolicy{
			Retry:               true,
			MaxRetries:          3,
			AlternativeApproach: "Simplified version of %s",
			SkipCondition:       models.SkipNever,
		},
		Loop: LoopPolicy{
			PollInterval:     100 * time.Millisecond,
			EventBufferSize:  256,
			EventSendTimeout: 100 * time.Millisecond,
		},
	}
}

// Validate checks that policy values are within acceptable ranges.
// Out of range values are reset to their defaults.
func (c *Config) Validate() error {
	d := Default()
	if c.Scheduling.MaxParallel < 1 {
		c.Scheduling.MaxParallel = d.Scheduling.MaxParallel
	}
	if c.Scheduling.TaskTimeout < 0 {
		c.Scheduling.TaskTimeout = 0
	}
	if len(c.Strategy.ResourceTypes) == 0 {
		c.Strategy.ResourceTypes = d.Strategy.ResourceTypes
	}
	if c.Strategy.EffortDays == nil {
		c.Strategy.EffortDays = d.Strategy.EffortDays
	}
	for effort, days := range d.Strategy.EffortDays {
		if c.Strategy.EffortDays[effort] < 1 {
			c.Strategy.EffortDays[effort] = days
		}
	}
	if c.Fallback.MaxRetries < 0 {
		c.Fallback.MaxRetries = 0
	}
	if c.Fallback.SkipCondition == "" {
		c.Fallback.SkipCondition = models.SkipNever
	}
	if !c.Fallback.SkipCondition.Valid() {
		return fmt.Errorf("unknown skip condition %q", c.Fallback.SkipCondition)
	}
	if c.Loop.PollInterval <= 0 {
		c.Loop.PollInterval = d.Loop.PollInterval
	}
	if c.Loop.EventBufferSize < 1 {
		c.Loop.EventBufferSize = d.Loop.EventBufferSize
	}
	if c.Loop.EventSendTimeout <= 0 {
		c.Loop.EventSendTimeout = d.Loop.EventSendTimeout
	}
	return nil
}

// DaysFor returns the estimated duration of an effort level.
// Unknown effort levels count as medium.
func (c *Config) DaysFor(e models.Effort) int {
	if days, ok := c.Strategy.EffortDays[e]; ok && days > 0 {
		return days
	}
	return c.Strategy.EffortDays[models.EffortMedium]
}

// FallbackFor builds the default fallback record for a task title.
func (c *Config) FallbackFor(title string) models.FallbackPolicy {
	alt := c.Fallback.AlternativeApproach
	if strings.Contains(alt, "%s") {
		alt = fmt.Sprintf(alt, title)
	}
	return models.FallbackPolicy{
		Retry:               c.Fallback.Retry,
		MaxRetries:          c.Fallback.MaxRetries,
		AlternativeApproach: alt,
		SkipCondition:       c.Fallback.SkipCondition,
	}
}
