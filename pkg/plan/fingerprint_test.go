package plan

import (
	"testing"

	"github.com/sealrunner/sealrunner/pkg/types"
)

func TestHash_StableAcrossModuleOrder(t *testing.T) {
	base := &types.ExecutionPlan{
		ID: "p",
		BinaryDeployments: []types.BinaryDeployment{
			{ID: "d1", ModuleNames: []string{"b", "a"}, TaskIDs: []string{"t2", "t1"}},
		},
	}
	reordered := &types.ExecutionPlan{
		ID: "p",
		BinaryDeployments: []types.BinaryDeployment{
			{ID: "d1", ModuleNames: []string{"a", "b"}, TaskIDs: []string{"t1", "t2"}},
		},
	}

	h1, err := Hash(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := Hash(reordered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected stable fingerprint across module/task order, got %s vs %s", h1, h2)
	}
}

func TestHash_DiffersOnContentChange(t *testing.T) {
	a := &types.ExecutionPlan{ID: "p", BinaryDeployments: []types.BinaryDeployment{{ID: "d1", BinaryName: "runner1"}}}
	b := &types.ExecutionPlan{ID: "p", BinaryDeployments: []types.BinaryDeployment{{ID: "d1", BinaryName: "runner2"}}}

	h1, _ := Hash(a)
	h2, _ := Hash(b)
	if h1 == h2 {
		t.Error("expected different fingerprints for different content")
	}
}

func TestHashModuleSet_OrderIndependent(t *testing.T) {
	specs1 := []types.ModuleSpec{{Name: "pkg", Version: "1"}, {Name: "exec", Version: "1"}}
	specs2 := []types.ModuleSpec{{Name: "exec", Version: "1"}, {Name: "pkg", Version: "1"}}

	h1, err := HashModuleSet(specs1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := HashModuleSet(specs2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected order-independent hash, got %s vs %s", h1, h2)
	}
}
