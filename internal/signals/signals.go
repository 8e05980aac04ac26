// Package signals lets other processes steer a running workflow by dropping
// files into .nexus/signals. A file named after the signal is consumed as
// soon as it is seen; its contents, if any, name the plan it targets.
package signals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal is a control request for a running workflow.
type Signal string

const (
	Pause  Signal = "pause"
	Resume Signal = "resume"
	Cancel Signal = "cancel"
)

// All lists the signals in the order Check applies them.
var All = []Signal{Pause, Resume, Cancel}

// Parse converts a name into a Signal.
func Parse(name string) (Signal, error) {
	s := Signal(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown signal %q (want pause, resume or cancel)", name)
}

// Notice is a consumed signal file.
type Notice struct {
	Signal Signal
	// PlanID is empty when the signal targets every running plan.
	PlanID string
	At     time.Time
}

// Dir returns the signals directory for a project.
func Dir(projectDir string) string {
	return filepath.Join(projectDir, ".nexus", "signals")
}

// Send writes a signal file. The file is written under a temporary name and
// renamed so watchers never observe a partial write.
func Send(projectDir string, sig Signal, planID string) error {
	dir := Dir(projectDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signals dir: %w", err)
	}
	tmp := filepath.Join(dir, "."+string(sig)+".tmp")
	if err := os.WriteFile(tmp, []byte(planID), 0644); err != nil {
		return fmt.Errorf("write signal: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, string(sig))); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

// Watcher delivers signal files as Notices.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	notices chan Notice
	poke    chan struct{}

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher watches the signals directory of projectDir, creating it if
// needed. Files already present are delivered first.
func NewWatcher(projectDir string) (*Watcher, error) {
	dir := Dir(projectDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:     dir,
		watcher: fw,
		notices: make(chan Notice, 16),
		poke:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Notices returns the channel of consumed signals. It is closed by Close.
func (w *Watcher) Notices() <-chan Notice {
	return w.notices
}

// Check asks the watcher to rescan the directory for signal files, covering
// events it may have missed.
func (w *Watcher) Check() {
	select {
	case w.poke <- struct{}{}:
	default:
	}
}

func (w *Watcher) scan() {
	for _, sig := range All {
		w.consume(filepath.Join(w.dir, string(sig)))
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	close(w.notices)
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	w.scan()
	for {
		select {
		case <-w.done:
			return
		case <-w.poke:
			w.scan()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.consume(event.Name)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Keep watching; Check picks up anything missed.
		}
	}
}

// consume reads and removes a signal file, then delivers it. Files that
// are not signals are left alone.
func (w *Watcher) consume(path string) {
	sig, err := Parse(filepath.Base(path))
	if err != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		return
	}

	n := Notice{Signal: sig, PlanID: strings.TrimSpace(string(data)), At: time.Now()}
	select {
	case w.notices <- n:
	case <-w.done:
	}
}

// Target is what signals act on.
type Target interface {
	Pause()
	Resume()
	Cancel(planID string) error
}

// Apply performs a single notice against target. A cancel without a plan id
// is sent to fallbackPlan.
func Apply(target Target, n Notice, fallbackPlan string) error {
	switch n.Signal {
	case Pause:
		target.Pause()
	case Resume:
		target.Resume()
	case Cancel:
		planID := n.PlanID
		if planID == "" {
			planID = fallbackPlan
		}
		if planID == "" {
			return errors.New("cancel signal names no plan")
		}
		return target.Cancel(planID)
	default:
		return fmt.Errorf("unknown signal %q", n.Signal)
	}
	return nil
}

// Forward applies notices from w to target until ctx is done or the watcher
// closes. A cancel without a plan id goes to whatever currentPlan returns when
// the notice arrives. Errors from Apply go to onErr when it is non-nil.
func Forward(ctx context.Context, w *Watcher, target Target, currentPlan func() string, onErr func(Notice, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-w.Notices():
			if !ok {
				return
			}
			fallback := ""
			if currentPlan != nil {
				fallback = currentPlan()
			}
			if err := Apply(target, n, fallback); err != nil && onErr != nil {
				onErr(n, err)
			}
		}
	}
}
