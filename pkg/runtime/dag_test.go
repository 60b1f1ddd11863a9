package runtime

import (
	"testing"

	"github.com/sealrunner/sealrunner/pkg/types"
)

func TestBuildWaves_OrdersDependenciesFirst(t *testing.T) {
	tasks := []types.Task{
		{ID: "a", Module: "command"},
		{ID: "b", Module: "command", DependsOn: []string{"a"}},
		{ID: "c", Module: "command", DependsOn: []string{"a", "b"}},
	}

	graph, err := buildWaves(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.waves) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(graph.waves))
	}
	if graph.waves[0][0].ID != "a" {
		t.Errorf("expected wave 0 to contain only a, got %v", graph.waves[0])
	}
	if graph.waves[1][0].ID != "b" {
		t.Errorf("expected wave 1 to contain only b, got %v", graph.waves[1])
	}
	if graph.waves[2][0].ID != "c" {
		t.Errorf("expected wave 2 to contain only c, got %v", graph.waves[2])
	}
}

func TestBuildWaves_IndependentTasksShareAWave(t *testing.T) {
	tasks := []types.Task{
		{ID: "a", Module: "command"},
		{ID: "b", Module: "command"},
	}

	graph, err := buildWaves(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.waves) != 1 || len(graph.waves[0]) != 2 {
		t.Fatalf("expected a single wave of 2 tasks, got %v", graph.waves)
	}
}

func TestBuildWaves_DetectsCycle(t *testing.T) {
	tasks := []types.Task{
		{ID: "a", Module: "command", DependsOn: []string{"b"}},
		{ID: "b", Module: "command", DependsOn: []string{"a"}},
	}

	_, err := buildWaves(tasks)
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestBuildWaves_UnresolvedDependency(t *testing.T) {
	tasks := []types.Task{
		{ID: "a", Module: "command", DependsOn: []string{"missing"}},
	}

	_, err := buildWaves(tasks)
	if err == nil {
		t.Fatal("expected unresolved dependency error")
	}
}

func TestBuildWaves_NotifyEdgesRecordedNotOrdered(t *testing.T) {
	tasks := []types.Task{
		{ID: "a", Module: "command", Notifies: []string{"restart"}},
		{ID: "restart", Module: "command"},
	}

	graph, err := buildWaves(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.waves) != 1 {
		t.Fatalf("notify edges must not affect wave ordering, got %d waves", len(graph.waves))
	}
	if got := graph.notify["restart"]; len(got) != 1 || got[0] != "a" {
		t.Errorf("expected restart to be notified by a, got %v", got)
	}
}
