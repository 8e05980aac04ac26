package models

import "time"

// SkipCondition decides whether a task that exhausted its retries may be skipped.
type SkipCondition string

const (
	// SkipNever never skips; exhaustion fails the task.
	SkipNever SkipCondition = "never"
	// SkipAlways skips the task once retries are exhausted.
	SkipAlways SkipCondition = "always"
	// SkipNonCritical skips only tasks that nothing else depends on.
	SkipNonCritical SkipCondition = "non_critical"
)

// Valid returns true if the condition is a known value.
func (c SkipCondition) Valid() bool {
	switch c {
	case SkipNever, SkipAlways, SkipNonCritical:
		return true
	default:
		return false
	}
}

// FallbackPolicy governs how a task failure is resolved.
type FallbackPolicy struct {
	Retry               bool          `json:"retry" yaml:"retry"`
	MaxRetries          int           `json:"max_retries" yaml:"max_retries"`
	AlternativeApproach string        `json:"alternative_approach,omitempty" yaml:"alternative_approach,omitempty"`
	SkipCondition       SkipCondition `json:"skip_condition" yaml:"skip_condition"`
}

// Timeline is the duration estimate of a plan.
type Timeline struct {
	// EstimatedDays is the critical path length.
	EstimatedDays int            `json:"estimated_days" yaml:"estimated_days"`
	TaskDurations map[string]int `json:"task_durations" yaml:"task_durations"`
	CriticalPath  []string       `json:"critical_path" yaml:"critical_path"`
}

// Strategy is the execution guidance computed for exactly one plan.
type Strategy struct {
	ID     string `json:"id" yaml:"id"`
	PlanID string `json:"plan_id" yaml:"plan_id"`
	// Levels are disjoint task sets; level k depends only on levels 0..k-1.
	Levels [][]string `json:"execution_levels" yaml:"execution_levels"`
	// ResourceAllocation maps resource type to task ids. It is read-only guidance.
	ResourceAllocation map[string][]string       `json:"resource_allocation" yaml:"resource_allocation"`
	Timeline           Timeline                  `json:"estimated_timeline" yaml:"estimated_timeline"`
	Fallbacks          map[string]FallbackPolicy `json:"fallback_strategies" yaml:"fallback_strategies"`
	CreatedAt          time.Time                 `json:"created_at" yaml:"created_at"`
}

// Fallback returns the policy for a task and whether one was defined.
func (s *Strategy) Fallback(taskID string) (FallbackPolicy, bool) {
	if s == nil || s.Fallbacks == nil {
		return FallbackPolicy{}, false
	}
	fb, ok := s.Fallbacks[taskID]
	return fb, ok
}
