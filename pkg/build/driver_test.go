package build

import (
	"context"
	"testing"

	"github.com/sealrunner/sealrunner/pkg/types"
)

type fakeBackend struct {
	target  string
	payload []byte
}

func (f fakeBackend) SupportsTarget(req types.CompilationRequirements) bool {
	return req.TargetTriple() == f.target
}

func (fakeBackend) Capabilities() []string { return []string{"fake"} }

func (f fakeBackend) Compile(_ context.Context, _ map[string][]byte, _ types.CompilationRequirements, outputPath string) error {
	return writeFile(outputPath, f.payload)
}

type memCache struct {
	store map[string]*types.CompiledArtifact
}

func newMemCache() *memCache { return &memCache{store: map[string]*types.CompiledArtifact{}} }

func (c *memCache) Lookup(_ context.Context, fingerprint string) (*types.CompiledArtifact, bool, error) {
	a, ok := c.store[fingerprint]
	return a, ok, nil
}

func (c *memCache) Store(_ context.Context, artifact *types.CompiledArtifact) error {
	c.store[artifact.Fingerprint] = artifact
	return nil
}

func TestDriver_Build_FreshCompilation(t *testing.T) {
	cache := newMemCache()
	driver := NewDriver(Config{
		Backends: []Backend{fakeBackend{target: "x86_64-linux", payload: []byte("binary-bytes")}},
		Cache:    cache,
	})

	req := types.CompilationRequirements{TargetArch: "x86_64", TargetOS: "linux"}
	artifact, err := driver.Build(context.Background(), "fp-1", nil, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact.Provenance != types.ProvenanceFreshCompilation {
		t.Errorf("expected fresh compilation provenance, got %s", artifact.Provenance)
	}
	if string(artifact.Bytes) != "binary-bytes" {
		t.Errorf("unexpected artifact bytes: %s", artifact.Bytes)
	}
}

func TestDriver_Build_CacheHit(t *testing.T) {
	cache := newMemCache()
	cache.store["fp-1"] = &types.CompiledArtifact{Fingerprint: "fp-1", Provenance: types.ProvenanceCache, Bytes: []byte("cached")}

	driver := NewDriver(Config{
		Backends: []Backend{fakeBackend{target: "x86_64-linux", payload: []byte("should-not-be-used")}},
		Cache:    cache,
	})

	req := types.CompilationRequirements{TargetArch: "x86_64", TargetOS: "linux"}
	artifact, err := driver.Build(context.Background(), "fp-1", nil, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact.Provenance != types.ProvenanceCache {
		t.Errorf("expected cache provenance, got %s", artifact.Provenance)
	}
}

func TestDriver_Build_UnsupportedTarget(t *testing.T) {
	driver := NewDriver(Config{
		Backends: []Backend{fakeBackend{target: "x86_64-linux"}},
		Cache:    newMemCache(),
	})

	req := types.CompilationRequirements{TargetArch: "riscv64", TargetOS: "linux"}
	if _, err := driver.Build(context.Background(), "fp-2", nil, req); err == nil {
		t.Fatal("expected unsupported target error")
	}
}

func TestDriver_Build_SizeExceeded(t *testing.T) {
	cache := newMemCache()
	driver := NewDriver(Config{
		Backends:       []Backend{fakeBackend{target: "x86_64-linux", payload: make([]byte, 100)}},
		Cache:          cache,
		MaxBinaryBytes: 10,
	})

	req := types.CompilationRequirements{TargetArch: "x86_64", TargetOS: "linux"}
	if _, err := driver.Build(context.Background(), "fp-3", nil, req); err == nil {
		t.Fatal("expected binary size exceeded error")
	}
}

func TestMandatoryTargets_CoversFourTriples(t *testing.T) {
	targets := MandatoryTargets()
	if len(targets) != 4 {
		t.Fatalf("expected 4 mandatory targets, got %d", len(targets))
	}
}
