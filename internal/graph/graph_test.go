package graph

import (
	"errors"
	"reflect"
	"sort"
	"strconv"
	"testing"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// slidingWindow builds n tasks where every task from the third on depends
// on the two tasks before it.
func slidingWindow(n int) []*models.Task {
	tasks := make([]*models.Task, n)
	for i := 0; i < n; i++ {
		id := taskID(i + 1)
		var deps []string
		if i >= 2 {
			deps = []string{taskID(i - 1), taskID(i)}
		}
		tasks[i] = &models.Task{ID: id, Title: id, DependsOn: deps, Status: models.TaskStatusPending}
	}
	return tasks
}

func taskID(i int) string {
	return "task_" + strconv.Itoa(i)
}

func TestBuildSimple(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task_1"},
		{ID: "task_2"},
		{ID: "task_3", DependsOn: []string{"task_1", "task_2"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
	if deps := g.Dependencies("task_3"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for task_3, got %v", deps)
	}
	if dependents := g.Dependents("task_1"); !reflect.DeepEqual(dependents, []string{"task_3"}) {
		t.Errorf("Dependents(task_1) = %v", dependents)
	}
}

func TestBuildRejectsBadIDs(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
	}{
		{"unknown dependency", []*models.Task{{ID: "a", DependsOn: []string{"ghost"}}}},
		{"duplicate id", []*models.Task{{ID: "a"}, {ID: "a"}}},
		{"empty id", []*models.Task{{ID: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Build(tt.tasks)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestBuildReportsCyclePath(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
		want  []string
	}{
		{
			name: "two node cycle",
			tasks: []*models.Task{
				{ID: "a", DependsOn: []string{"b"}},
				{ID: "b", DependsOn: []string{"a"}},
			},
			want: []string{"a", "b", "a"},
		},
		{
			name:  "self reference",
			tasks: []*models.Task{{ID: "a", DependsOn: []string{"a"}}},
			want:  []string{"a", "a"},
		},
		{
			name: "cycle behind a root",
			tasks: []*models.Task{
				{ID: "root"},
				{ID: "x", DependsOn: []string{"root", "z"}},
				{ID: "y", DependsOn: []string{"x"}},
				{ID: "z", DependsOn: []string{"y"}},
			},
			want: []string{"x", "z", "y", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Build(tt.tasks)
			if !errors.Is(err, models.ErrCyclicDependency) {
				t.Fatalf("expected ErrCyclicDependency, got %v", err)
			}
			var ce *models.CycleError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *CycleError, got %T", err)
			}
			if !reflect.DeepEqual(ce.Path, tt.want) {
				t.Errorf("cycle path = %v, want %v", ce.Path, tt.want)
			}
		})
	}
}

func TestCheckBackwardReferences(t *testing.T) {
	g, err := FromTasks([]*models.Task{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := g.CheckBackwardReferences(); !errors.Is(err, models.ErrValidation) {
		t.Errorf("forward reference: expected ErrValidation, got %v", err)
	}

	g, err = FromTasks(slidingWindow(4))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := g.CheckBackwardReferences(); err != nil {
		t.Errorf("sliding window should only reference earlier tasks: %v", err)
	}
}

func TestLevelsSlidingWindow(t *testing.T) {
	g, err := FromTasks(slidingWindow(5))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := [][]string{{"task_1", "task_2"}, {"task_3"}, {"task_4"}, {"task_5"}}
	if got := g.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}
}

func TestLevelsAreStrictlyIncreasingAlongEdges(t *testing.T) {
	g, err := FromTasks(slidingWindow(12))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 1; i <= 12; i++ {
		id := taskID(i)
		for _, dep := range g.Dependencies(id) {
			if g.Level(id) <= g.Level(dep) {
				t.Errorf("level(%s)=%d not greater than level(%s)=%d", id, g.Level(id), dep, g.Level(dep))
			}
		}
	}
	if g.Level("missing") != -1 {
		t.Error("unknown task should have level -1")
	}
}

func TestLevelsUseLongestPath(t *testing.T) {
	// d depends on a (level 0) and c (level 2), so it must land on level 3.
	g, err := FromTasks([]*models.Task{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
		{ID: "d", DependsOn: []string{"a", "c"}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := g.Level("d"); got != 3 {
		t.Errorf("Level(d) = %d, want 3", got)
	}
}

func TestLevelsTieOrderIsNatural(t *testing.T) {
	tasks := []*models.Task{{ID: "task_10"}, {ID: "task_2"}, {ID: "task_1"}}
	g, err := FromTasks(tasks)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := [][]string{{"task_1", "task_2", "task_10"}}
	if got := g.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}
}

func TestCriticalPath(t *testing.T) {
	durations := map[string]int{"a": 1, "b": 3, "c": 2, "d": 1}
	g, err := FromTasks([]*models.Task{
		{ID: "a"},
		{ID: "b"},
		{ID: "c", DependsOn: []string{"a"}},
		{ID: "d", DependsOn: []string{"b", "c"}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	total, path := g.CriticalPath(func(id string) int { return durations[id] })
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	// a->c->d and b->d both weigh 4; the tie goes to the lower dependency.
	if want := []string{"b", "d"}; !reflect.DeepEqual(path, want) {
		t.Errorf("path = %v, want %v", path, want)
	}
}

func TestCriticalPathIsNotTheSum(t *testing.T) {
	g, err := FromTasks(slidingWindow(5))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	total, path := g.CriticalPath(func(string) int { return 2 })
	if total != 8 {
		t.Errorf("total = %d, want 8 (4 levels x 2 days)", total)
	}
	if len(path) != 4 {
		t.Errorf("path = %v, want 4 tasks", path)
	}
}

func TestTransitiveDependents(t *testing.T) {
	g, err := FromTasks(slidingWindow(5))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := g.TransitiveDependents("task_3")
	if want := []string{"task_4", "task_5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TransitiveDependents(task_3) = %v, want %v", got, want)
	}
	if got := g.TransitiveDependents("task_5"); len(got) != 0 {
		t.Errorf("leaf should have no dependents, got %v", got)
	}
}

func TestReady(t *testing.T) {
	g, err := FromTasks(slidingWindow(5))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	status := map[string]models.TaskStatus{
		"task_1": models.TaskStatusCompleted,
		"task_2": models.TaskStatusSkipped,
		"task_3": models.TaskStatusPending,
		"task_4": models.TaskStatusPending,
		"task_5": models.TaskStatusPending,
	}

	got := g.Ready(func(id string) models.TaskStatus { return status[id] })
	if want := []string{"task_3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Ready() = %v, want %v", got, want)
	}

	status["task_3"] = models.TaskStatusFailed
	if got := g.Ready(func(id string) models.TaskStatus { return status[id] }); len(got) != 0 {
		t.Errorf("failed dependency must not release dependents, got %v", got)
	}
}

func TestCompareIDs(t *testing.T) {
	ids := []string{"task_10", "task_2", "task_1", "alpha", "task_02b"}
	sort.Slice(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
	want := []string{"alpha", "task_1", "task_2", "task_02b", "task_10"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("sorted = %v, want %v", ids, want)
	}
}
