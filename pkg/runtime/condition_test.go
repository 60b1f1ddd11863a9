package runtime

import (
	"context"
	"testing"
)

func TestEvaluateCondition_EmptyIsTrue(t *testing.T) {
	ok, err := evaluateCondition(context.Background(), "", nil)
	if err != nil || !ok {
		t.Fatalf("expected empty condition to be true, got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateCondition_UsesScope(t *testing.T) {
	vars := map[string]interface{}{"os_family": "linux"}

	ok, err := evaluateCondition(context.Background(), `os_family == "linux"`, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected condition to be true")
	}

	ok, err = evaluateCondition(context.Background(), `os_family == "darwin"`, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected condition to be false")
	}
}

func TestEvaluateCondition_InvalidExpressionFails(t *testing.T) {
	_, err := evaluateCondition(context.Background(), "not valid starlark (((", nil)
	if err == nil {
		t.Fatal("expected an error for invalid expression")
	}
}
