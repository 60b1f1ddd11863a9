package runtime

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
)

const conditionTimeout = 5 * time.Second

// evaluateCondition runs expr as a Starlark expression with vars bound
// as predeclared globals, the same timeout-bound-goroutine shape
// pkg/config's StarlarkEvaluator uses for full scripts, scaled down
// here to a single boolean expression since task conditions never need
// CUE or struct-building support.
func evaluateCondition(ctx context.Context, expr string, vars map[string]interface{}) (bool, error) {
	if expr == "" {
		return true, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, conditionTimeout)
	defer cancel()

	type outcome struct {
		ok  bool
		err error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		predeclared := starlark.StringDict{}
		for k, v := range vars {
			sv, err := toStarlarkValue(v)
			if err != nil {
				resultCh <- outcome{err: fmt.Errorf("condition variable %s: %w", k, err)}
				return
			}
			predeclared[k] = sv
		}

		thread := &starlark.Thread{Name: "condition", Print: func(*starlark.Thread, string) {}}
		val, err := starlark.Eval(thread, "condition.star", expr, predeclared)
		if err != nil {
			resultCh <- outcome{err: err}
			return
		}
		resultCh <- outcome{ok: bool(val.Truth())}
	}()

	select {
	case <-evalCtx.Done():
		return false, errdefs.NewPermanent("condition evaluation timed out", evalCtx.Err()).
			WithCode(errdefs.CodeConditionFailed)
	case o := <-resultCh:
		if o.err != nil {
			return false, errdefs.NewPermanent("condition evaluation failed", o.err).
				WithCode(errdefs.CodeConditionFailed)
		}
		return o.ok, nil
	}
}

func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}
	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported condition variable type: %T", v)
	}
}
