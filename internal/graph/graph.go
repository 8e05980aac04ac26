// Package graph provides the task dependency graph used for validation,
// leveling and readiness checks.
package graph

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges point from a task to the tasks it depends on.
type DependencyGraph struct {
	mu sync.RWMutex
	// order is the task order of the plan the graph was built from.
	order []string
	// index maps task ID to its position in order.
	index map[string]int
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
	// dependents maps task ID to IDs of tasks that depend on it.
	dependents map[string][]string
	// levels caches the longest-path level of every task.
	levels map[string]int
	// debugLog is an optional logging function.
	debugLog func(format string, args ...any)
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		index:      make(map[string]int),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		debugLog:   func(format string, args ...any) {},
	}
}

// FromTasks builds a graph in one step.
func FromTasks(tasks []*models.Task) (*DependencyGraph, error) {
	g := New()
	if err := g.Build(tasks); err != nil {
		return nil, err
	}
	return g, nil
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks.
// Duplicate or unknown ids fail with models.ErrValidation; a cycle fails
// with a *models.CycleError naming the cycle.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	for i, task := range tasks {
		if task.ID == "" {
			return fmt.Errorf("%w: task at position %d has no id", models.ErrValidation, i)
		}
		if _, dup := g.index[task.ID]; dup {
			return fmt.Errorf("%w: duplicate task id %s", models.ErrValidation, task.ID)
		}
		g.index[task.ID] = i
		g.order = append(g.order, task.ID)
		g.edges[task.ID] = nil
	}

	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.index[depID]; !exists {
				return fmt.Errorf("%w: task %s depends on unknown task %s", models.ErrValidation, task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	if path := g.findCycleLocked(); path != nil {
		g.debugLog("[graph.Build] cycle: %v", path)
		return &models.CycleError{Path: path}
	}

	g.levels = g.computeLevelsLocked()
	g.debugLog("[graph.Build] graph built with %d nodes", len(g.order))
	return nil
}

// findCycleLocked runs a colour DFS in plan order and returns the first
// cycle found, with its first node repeated at the end.
func (g *DependencyGraph) findCycleLocked() []string {
	const (
		white = iota
		grey
		black
	)
	colors := make(map[string]int, len(g.order))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = grey
		stack = append(stack, id)
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case grey:
				start := 0
				for i, s := range stack {
					if s == depID {
						start = i
						break
					}
				}
				path := append([]string(nil), stack[start:]...)
				return append(path, depID)
			case white:
				if p := visit(depID); p != nil {
					return p
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = black
		return nil
	}

	for _, id := range g.order {
		if colors[id] == white {
			if p := visit(id); p != nil {
				return p
			}
		}
	}
	return nil
}

// computeLevelsLocked assigns level 0 to roots and 1+max(dep level) otherwise.
func (g *DependencyGraph) computeLevelsLocked() map[string]int {
	levels := make(map[string]int, len(g.order))
	var level func(id string) int
	level = func(id string) int {
		if l, ok := levels[id]; ok {
			return l
		}
		l := 0
		for _, depID := range g.edges[id] {
			if dl := level(depID) + 1; dl > l {
				l = dl
			}
		}
		levels[id] = l
		return l
	}
	for _, id := range g.order {
		level(id)
	}
	return levels
}

// CheckBackwardReferences fails with models.ErrValidation if a task depends on
// itself or on a task defined later in the plan.
func (g *DependencyGraph) CheckBackwardReferences() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == id {
				return fmt.Errorf("%w: task %s depends on itself", models.ErrValidation, id)
			}
			if g.index[depID] > g.index[id] {
				return fmt.Errorf("%w: task %s references %s before it is defined", models.ErrValidation, id, depID)
			}
		}
	}
	return nil
}

// Levels groups tasks by longest-path level. Ties within a level are
// ordered by ascending task id.
func (g *DependencyGraph) Levels() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	maxLevel := -1
	for _, l := range g.levels {
		if l > maxLevel {
			maxLevel = l
		}
	}
	out := make([][]string, maxLevel+1)
	for _, id := range g.order {
		l := g.levels[id]
		out[l] = append(out[l], id)
	}
	for _, ids := range out {
		sort.Slice(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
	}
	return out
}

// Level returns the level of a task, or -1 if it is unknown.
func (g *DependencyGraph) Level(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if l, ok := g.levels[id]; ok {
		return l
	}
	return -1
}

// CriticalPath returns the longest duration-weighted root-to-leaf path and
// its total. Ties go to the path ending at the lowest ordered task.
func (g *DependencyGraph) CriticalPath(duration func(id string) int) (int, []string) {
	ordered := g.sortedByLevel()

	g.mu.RLock()
	defer g.mu.RUnlock()

	dist := make(map[string]int, len(ordered))
	prev := make(map[string]string, len(ordered))
	best, end := 0, ""
	for _, id := range ordered {
		d, p := 0, ""
		for _, depID := range g.edges[id] {
			dd := dist[depID]
			if p == "" || dd > d || (dd == d && CompareIDs(depID, p) < 0) {
				d, p = dd, depID
			}
		}
		if p != "" {
			prev[id] = p
		}
		dist[id] = d + duration(id)
		if dist[id] > best {
			best, end = dist[id], id
		}
	}

	var path []string
	for id := end; id != ""; id = prev[id] {
		path = append([]string{id}, path...)
	}
	return best, path
}

// Dependencies returns the direct dependencies of a task.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the tasks that directly depend on id.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// TransitiveDependents returns every task that depends on id directly or
// through other tasks, sorted by id.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	queue := append([]string(nil), g.dependents[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, g.dependents[cur]...)
	}

	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return CompareIDs(out[i], out[j]) < 0 })
	return out
}

// Ready returns pending tasks whose dependencies are all satisfied, ordered
// by level and then by id.
func (g *DependencyGraph) Ready(status func(id string) models.TaskStatus) []string {
	var ready []string
	for _, id := range g.sortedByLevel() {
		if status(id) != models.TaskStatusPending {
			continue
		}
		ok := true
		for _, depID := range g.Dependencies(id) {
			if !status(depID).Satisfied() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

func (g *DependencyGraph) sortedByLevel() []string {
	var out []string
	for _, ids := range g.Levels() {
		out = append(out, ids...)
	}
	return out
}

// CompareIDs orders ids naturally, so "task_2" sorts before "task_10".
func CompareIDs(a, b string) int {
	x, y := a, b
	for x != "" && y != "" {
		cx, rx := chunk(x)
		cy, ry := chunk(y)
		if isDigit(cx[0]) && isDigit(cy[0]) {
			nx := strings.TrimLeft(cx, "0")
			ny := strings.TrimLeft(cy, "0")
			if len(nx) != len(ny) {
				return cmp.Compare(len(nx), len(ny))
			}
			if c := strings.Compare(nx, ny); c != 0 {
				return c
			}
		} else if c := strings.Compare(cx, cy); c != 0 {
			return c
		}
		x, y = rx, ry
	}
	if c := cmp.Compare(len(x), len(y)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// chunk splits off the leading run of digits or non-digits.
func chunk(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
