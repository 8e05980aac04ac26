package models

import (
	"errors"
	"strings"
)

// Error taxonomy shared by every component. Callers branch with errors.Is.
var (
	// ErrValidation reports malformed input or a missing prerequisite.
	ErrValidation = errors.New("validation error")
	// ErrNotFound reports an unknown goal, plan, strategy or execution id.
	ErrNotFound = errors.New("not found")
	// ErrCyclicDependency reports a dependency graph that is not a DAG.
	ErrCyclicDependency = errors.New("cyclic dependency")
	// ErrScheduling reports that no registered agent can run a task.
	ErrScheduling = errors.New("scheduling error")
	// ErrRetryExhausted reports a terminal task failure after bounded retries.
	ErrRetryExhausted = errors.New("retry exhausted")
	// ErrAdaptation reports an attempt to adapt a plan that is still executing.
	ErrAdaptation = errors.New("adaptation error")
	// ErrDuplicateAgent reports a second registration for the same agent id.
	ErrDuplicateAgent = errors.New("agent already registered")
)

// ErrNoCapacity reports that capable agents exist but all of them are busy.
var ErrNoCapacity = &capacityError{}

type capacityError struct{}

func (*capacityError) Error() string        { return "scheduling error: all capable agents are busy" }
func (*capacityError) Is(target error) bool { return target == ErrScheduling }

// CycleError carries the offending cycle, first node repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Path, " -> ")
}

// Is makes errors.Is(err, ErrCyclicDependency) hold.
func (e *CycleError) Is(target error) bool {
	return target == ErrCyclicDependency
}
