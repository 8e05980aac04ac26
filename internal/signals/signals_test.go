package signals

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, dir
}

func receive(t *testing.T, w *Watcher) Notice {
	t.Helper()
	select {
	case n := <-w.Notices():
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
	return Notice{}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Signal
		wantErr bool
	}{
		{"pause", Pause, false},
		{" Resume ", Resume, false},
		{"CANCEL", Cancel, false},
		{"kill", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSendIsDelivered(t *testing.T) {
	w, dir := newWatcher(t)

	if err := Send(dir, Cancel, "plan-1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	n := receive(t, w)
	if n.Signal != Cancel || n.PlanID != "plan-1" {
		t.Errorf("notice = %+v", n)
	}
	if _, err := os.Stat(filepath.Join(Dir(dir), "cancel")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("signal file should be consumed, stat err = %v", err)
	}
}

func TestExistingFilesAreDelivered(t *testing.T) {
	dir := t.TempDir()
	if err := Send(dir, Pause, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if n := receive(t, w); n.Signal != Pause || n.PlanID != "" {
		t.Errorf("notice = %+v", n)
	}
}

func TestUnknownFilesAreIgnored(t *testing.T) {
	w, dir := newWatcher(t)

	if err := os.WriteFile(filepath.Join(Dir(dir), "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Send(dir, Resume, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := receive(t, w); n.Signal != Resume {
		t.Errorf("expected resume, got %+v", n)
	}
	if _, err := os.Stat(filepath.Join(Dir(dir), "notes.txt")); err != nil {
		t.Errorf("unrelated file should be left alone: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, _ := newWatcher(t)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, ok := <-w.Notices(); ok {
		t.Error("notices channel should be closed")
	}
	w.Check()
}

type fakeTarget struct {
	mu        sync.Mutex
	paused    bool
	cancelled []string
}

func (f *fakeTarget) Pause()  { f.mu.Lock(); f.paused = true; f.mu.Unlock() }
func (f *fakeTarget) Resume() { f.mu.Lock(); f.paused = false; f.mu.Unlock() }
func (f *fakeTarget) Cancel(planID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, planID)
	return nil
}

func TestApply(t *testing.T) {
	target := &fakeTarget{}

	if err := Apply(target, Notice{Signal: Pause}, ""); err != nil || !target.paused {
		t.Fatalf("pause: err=%v paused=%v", err, target.paused)
	}
	if err := Apply(target, Notice{Signal: Resume}, ""); err != nil || target.paused {
		t.Fatalf("resume: err=%v paused=%v", err, target.paused)
	}
	if err := Apply(target, Notice{Signal: Cancel}, "current"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := Apply(target, Notice{Signal: Cancel, PlanID: "other"}, "current"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(target.cancelled) != 2 || target.cancelled[0] != "current" || target.cancelled[1] != "other" {
		t.Errorf("cancelled = %v", target.cancelled)
	}
	if err := Apply(target, Notice{Signal: Cancel}, ""); err == nil {
		t.Error("cancel without a plan should fail")
	}
}

func TestForward(t *testing.T) {
	w, dir := newWatcher(t)
	target := &fakeTarget{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Forward(ctx, w, target, func() string { return "plan-9" }, nil)
		close(done)
	}()

	if err := Send(dir, Cancel, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		target.mu.Lock()
		n := len(target.cancelled)
		target.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cancel was not forwarded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
	if target.cancelled[0] != "plan-9" {
		t.Errorf("cancelled = %v", target.cancelled)
	}
}

func TestForward_FollowsCurrentPlan(t *testing.T) {
	w, dir := newWatcher(t)
	target := &fakeTarget{}

	var current atomic.Value
	current.Store("plan-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Forward(ctx, w, target, func() string { return current.Load().(string) }, nil)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitCancelled := func(n int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for {
			target.mu.Lock()
			got := len(target.cancelled)
			target.mu.Unlock()
			if got >= n {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("cancel %d was not forwarded", n)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	if err := Send(dir, Cancel, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitCancelled(1)

	current.Store("plan-2")
	if err := Send(dir, Cancel, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitCancelled(2)

	target.mu.Lock()
	defer target.mu.Unlock()
	if target.cancelled[0] != "plan-1" || target.cancelled[1] != "plan-2" {
		t.Errorf("cancelled = %v, want [plan-1 plan-2]", target.cancelled)
	}
}
