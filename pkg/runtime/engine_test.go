package runtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sealrunner/sealrunner/pkg/types"
)

func planJSON(t *testing.T, plan types.ExecutionPlan) []byte {
	t.Helper()
	b, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("failed to marshal test plan: %v", err)
	}
	return b
}

func okModule(ctx context.Context, args map[string]interface{}) (ModuleResult, error) {
	return ModuleResult{Changed: true}, nil
}

func failModule(ctx context.Context, args map[string]interface{}) (ModuleResult, error) {
	return ModuleResult{Failed: true, Error: "boom"}, nil
}

func TestEngine_Run_EmptyPlanExitsSuccess(t *testing.T) {
	cfg := Config{Plan: planJSON(t, types.ExecutionPlan{}), Modules: map[string]ModuleFunc{}}
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code := engine.Run(context.Background()); code != ExitSuccess {
		t.Errorf("expected ExitSuccess, got %d", code)
	}
}

func TestEngine_Run_SingleTaskSucceeds(t *testing.T) {
	plan := types.ExecutionPlan{Plays: []types.Play{{
		Name:    "p1",
		Batches: []types.TaskBatch{{Tasks: []types.Task{{ID: "t1", Module: "ok"}}}},
	}}}

	cfg := Config{Plan: planJSON(t, plan), Modules: map[string]ModuleFunc{"ok": okModule}}
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code := engine.Run(context.Background()); code != ExitSuccess {
		t.Errorf("expected ExitSuccess, got %d", code)
	}
	if r := engine.results["t1"]; r.Status != types.TaskSuccess || !r.Changed {
		t.Errorf("expected t1 success+changed, got %+v", r)
	}
}

func TestEngine_Run_ModuleNotFound(t *testing.T) {
	plan := types.ExecutionPlan{Plays: []types.Play{{
		Batches: []types.TaskBatch{{Tasks: []types.Task{{ID: "t1", Module: "missing"}}}},
	}}}

	cfg := Config{Plan: planJSON(t, plan), Modules: map[string]ModuleFunc{}}
	engine, _ := New(cfg)
	if code := engine.Run(context.Background()); code != ExitFailed {
		t.Errorf("expected ExitFailed, got %d", code)
	}
}

func TestEngine_Run_ConditionSkipsWithoutDispatch(t *testing.T) {
	plan := types.ExecutionPlan{Plays: []types.Play{{
		Batches: []types.TaskBatch{{Tasks: []types.Task{
			{ID: "t1", Module: "ok", Condition: "1 == 2"},
		}}},
	}}}

	cfg := Config{Plan: planJSON(t, plan), Modules: map[string]ModuleFunc{"ok": okModule}}
	engine, _ := New(cfg)
	if code := engine.Run(context.Background()); code != ExitSuccess {
		t.Errorf("expected ExitSuccess (skipped tasks don't fail the run), got %d", code)
	}
	if r := engine.results["t1"]; r.Status != types.TaskSkipped || r.Reason != "condition-not-met" {
		t.Errorf("expected condition-not-met skip, got %+v", r)
	}
}

func TestEngine_Run_UpstreamFailurePropagatesSkip(t *testing.T) {
	plan := types.ExecutionPlan{Plays: []types.Play{{
		Batches: []types.TaskBatch{{Tasks: []types.Task{
			{ID: "a", Module: "fail"},
			{ID: "b", Module: "ok", DependsOn: []string{"a"}},
		}}},
	}}}

	cfg := Config{Plan: planJSON(t, plan), Modules: map[string]ModuleFunc{"fail": failModule, "ok": okModule}}
	engine, _ := New(cfg)
	code := engine.Run(context.Background())
	if code != ExitFailed {
		t.Errorf("expected ExitFailed, got %d", code)
	}
	if r := engine.results["b"]; r.Status != types.TaskSkipped || r.Reason != "upstream-failed" {
		t.Errorf("expected b to be upstream-failed skip, got %+v", r)
	}
}

func TestEngine_Run_ConditionSkipCascadesAsUpstreamSkipped(t *testing.T) {
	plan := types.ExecutionPlan{Plays: []types.Play{{
		Batches: []types.TaskBatch{{Tasks: []types.Task{
			{ID: "a", Module: "ok", Condition: "1 == 2"},
			{ID: "b", Module: "ok", DependsOn: []string{"a"}},
		}}},
	}}}

	cfg := Config{Plan: planJSON(t, plan), Modules: map[string]ModuleFunc{"ok": okModule}}
	engine, _ := New(cfg)
	if code := engine.Run(context.Background()); code != ExitSuccess {
		t.Errorf("expected ExitSuccess, got %d", code)
	}
	if r := engine.results["b"]; r.Status != types.TaskSkipped || r.Reason != "upstream-skipped" {
		t.Errorf("expected b to be upstream-skipped, got %+v", r)
	}
}

func TestEngine_Run_HandlerFiresOnlyWhenNotifierChanged(t *testing.T) {
	plan := types.ExecutionPlan{Plays: []types.Play{{
		Handlers: []types.Task{{ID: "restart", Module: "ok"}},
		Batches: []types.TaskBatch{{Tasks: []types.Task{
			{ID: "t1", Module: "ok", Notifies: []string{"restart"}},
		}}},
	}}}

	cfg := Config{Plan: planJSON(t, plan), Modules: map[string]ModuleFunc{"ok": okModule}}
	engine, _ := New(cfg)
	engine.Run(context.Background())
	if _, ok := engine.results["restart"]; !ok {
		t.Error("expected handler to have fired since notifier changed")
	}
}

func TestEngine_Run_TaskTimeout(t *testing.T) {
	slow := func(ctx context.Context, args map[string]interface{}) (ModuleResult, error) {
		select {
		case <-time.After(time.Second):
			return ModuleResult{}, nil
		case <-ctx.Done():
			return ModuleResult{}, ctx.Err()
		}
	}

	plan := types.ExecutionPlan{Plays: []types.Play{{
		Batches: []types.TaskBatch{{Tasks: []types.Task{
			{ID: "t1", Module: "slow", Timeout: 10 * time.Millisecond},
		}}},
	}}}

	cfg := Config{Plan: planJSON(t, plan), Modules: map[string]ModuleFunc{"slow": slow}}
	engine, _ := New(cfg)
	code := engine.Run(context.Background())
	if code != ExitFailed {
		t.Errorf("expected ExitFailed, got %d", code)
	}
	if r := engine.results["t1"]; r.Status != types.TaskTimeout {
		t.Errorf("expected TaskTimeout, got %+v", r)
	}
}

func TestNew_InvalidPlanIsSetupError(t *testing.T) {
	_, err := New(Config{Plan: []byte("not json")})
	if err == nil {
		t.Fatal("expected error for invalid plan JSON")
	}
}
