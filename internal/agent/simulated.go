package agent

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Simulated is a deterministic agent for demos and tests. It takes a fixed
// time per task and fails a configured number of times per task id.
type Simulated struct {
	Base
	delay time.Duration

	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

// NewSimulated creates a simulated agent that takes delay per task.
func NewSimulated(id string, capabilities []string, delay time.Duration) *Simulated {
	return &Simulated{
		Base:     NewBase(id, capabilities),
		delay:    delay,
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// FailTask makes the next n attempts at taskID fail.
func (s *Simulated) FailTask(taskID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[taskID] = n
}

// Calls returns how many times taskID was processed.
func (s *Simulated) Calls(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[taskID]
}

// Process waits for the configured delay and then succeeds or fails.
func (s *Simulated) Process(ctx context.Context, req *Request) (*Result, error) {
	s.mu.Lock()
	s.calls[req.Task.ID]++
	fail := s.failures[req.Task.ID] > 0
	if fail {
		s.failures[req.Task.ID]--
	}
	s.mu.Unlock()

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return nil, fmt.Errorf("simulated failure of %s (attempt %d)", req.Task.ID, req.Attempt)
	}
	return &Result{Output: fmt.Sprintf("%s completed %s", s.ID(), req.Task.ID)}, nil
}
