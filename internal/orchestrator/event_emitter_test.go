package orchestrator

import (
	"testing"
	"time"
)

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1, time.Millisecond)
	e.Emit(Event{Type: EventTaskStarted})
	e.Emit(Event{Type: EventTaskCompleted})

	if got := e.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}
	ev := <-e.Events()
	if ev.Type != EventTaskStarted || ev.Timestamp.IsZero() {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestEventEmitter_EmitAfterClose(t *testing.T) {
	e := NewEventEmitter(4, time.Millisecond)
	e.Close()
	e.Close()
	e.Emit(Event{Type: EventWorkflowStarted})

	if _, ok := <-e.Events(); ok {
		t.Error("expected closed channel")
	}
}
