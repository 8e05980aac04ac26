package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrStopped is returned by WaitIfPaused once the controller is stopped.
var ErrStopped = errors.New("orchestrator stopped")

// PauseController gates dispatch of new tasks. Pausing never interrupts
// tasks that are already with an agent.
type PauseController struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	// released is closed on Resume or Stop to wake waiters.
	released chan struct{}
}

// NewPauseController creates a controller in the running state.
func NewPauseController() *PauseController {
	return &PauseController{released: make(chan struct{})}
}

// Pause stops the dispatch of new tasks until Resume.
func (p *PauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return
	}
	p.paused = true
	p.released = make(chan struct{})
	log.Printf("[orchestrator] paused - no new tasks will be dispatched")
}

// Resume lets dispatch continue.
func (p *PauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	close(p.released)
	log.Printf("[orchestrator] resumed - dispatch enabled")
}

// Stop releases every waiter for good.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.paused {
		p.paused = false
		close(p.released)
	}
}

// IsPaused returns whether dispatch is paused.
func (p *PauseController) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// IsStopped returns whether the controller has been stopped.
func (p *PauseController) IsStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// WaitIfPaused blocks while paused. It returns ctx.Err() if ctx ends first
// and ErrStopped once the controller is stopped.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if !p.paused {
		p.mu.Unlock()
		return nil
	}
	released := p.released
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-released:
	}

	if p.IsStopped() {
		return ErrStopped
	}
	return nil
}
