package runtime

import (
	"fmt"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// waveGraph is one batch's dependency graph, split into levels
// ("waves") of tasks that can run concurrently. The level assignment
// follows the same Kahn's-algorithm approach pkg/engine/dag.go uses
// for plan units: in-degree tracking with per-level peeling, so tasks
// at the same level have no DependsOn edge between them.
type waveGraph struct {
	waves   [][]types.Task
	byID    map[string]*types.Task
	notify  map[string][]string // handler task ID -> notifier task IDs
}

// buildWaves computes execution levels for one batch's tasks. DependsOn
// edges require level ordering; Notifies edges are recorded separately
// since they govern handler firing, not ordering.
func buildWaves(tasks []types.Task) (*waveGraph, error) {
	byID := make(map[string]*types.Task, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if t.ID == "" {
			return nil, errdefs.NewPermanent("task has empty ID", nil).WithCode(errdefs.CodeMissingRequiredField)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, errdefs.NewPermanent(fmt.Sprintf("duplicate task ID: %s", t.ID), nil).
				WithCode(errdefs.CodeMissingRequiredField)
		}
		byID[t.ID] = t
	}

	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	notify := make(map[string][]string)

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, errdefs.NewPermanent(fmt.Sprintf("task %s depends on unknown task %s", t.ID, dep), nil).
					WithCode(errdefs.CodeModuleNotFound).WithResource(t.ID)
			}
			inDegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
		for _, handlerID := range t.Notifies {
			notify[handlerID] = append(notify[handlerID], t.ID)
		}
	}

	var waves [][]types.Task
	current := make([]string, 0)
	for _, t := range tasks {
		if inDegree[t.ID] == 0 {
			current = append(current, t.ID)
		}
	}

	processed := 0
	for len(current) > 0 {
		level := make([]types.Task, 0, len(current))
		for _, id := range current {
			level = append(level, *byID[id])
		}
		waves = append(waves, level)
		processed += len(level)

		next := make([]string, 0)
		for _, id := range current {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if processed != len(tasks) {
		stuck := make([]string, 0, len(tasks)-processed)
		for id, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, errdefs.NewPermanent(fmt.Sprintf("dependency cycle among tasks: %v", stuck), nil).
			WithCode(errdefs.CodeDependencyCycle)
	}

	return &waveGraph{waves: waves, byID: byID, notify: notify}, nil
}
