package models

import "time"

// Priority ranks goals relative to each other.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Goal is a structured statement of a desired outcome.
// Goals are never edited; re-interpreting requirements yields a new Goal.
type Goal struct {
	ID                   string    `json:"id" yaml:"id"`
	Title                string    `json:"title" yaml:"title"`
	Description          string    `json:"description,omitempty" yaml:"description,omitempty"`
	SuccessCriteria      []string  `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
	Constraints          []string  `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	RequiredCapabilities []string  `json:"required_capabilities,omitempty" yaml:"required_capabilities,omitempty"`
	Priority             Priority  `json:"priority" yaml:"priority"`
	CreatedAt            time.Time `json:"created_at" yaml:"created_at"`
}
