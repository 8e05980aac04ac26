package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventEmitter delivers events to a single buffered channel.
// A slow subscriber loses events instead of stalling the orchestrator.
type EventEmitter struct {
	events       chan Event
	sendTimeout  time.Duration
	droppedCount atomic.Uint64

	// mu guards closed so Emit never sends on a closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewEventEmitter creates an emitter with the given buffer size. Emit waits
// up to sendTimeout on a full channel before dropping the event.
func NewEventEmitter(bufferSize int, sendTimeout time.Duration) *EventEmitter {
	return &EventEmitter{
		events:      make(chan Event, bufferSize),
		sendTimeout: sendTimeout,
	}
}

// Emit sends an event, stamping it if no timestamp is set.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	timer := time.NewTimer(e.sendTimeout)
	defer timer.Stop()
	select {
	case e.events <- event:
	case <-timer.C:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[orchestrator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the subscriber side of the channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the channel. Later Emit calls are ignored.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}
