package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sealrunner/sealrunner/pkg/stores"
	"github.com/sealrunner/sealrunner/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	meta, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create metadata store: %v", err)
	}
	ctx := context.Background()
	if err := meta.Init(ctx); err != nil {
		t.Fatalf("failed to init metadata store: %v", err)
	}
	if err := meta.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate metadata store: %v", err)
	}

	s, err := New(meta, filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("failed to create artifact store: %v", err)
	}
	return s
}

func TestStore_PutThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("fake binary contents")

	a := &types.CompiledArtifact{
		Fingerprint:  "fp-1",
		Bytes:        data,
		Checksum:     checksum(data),
		TargetTriple: "x86_64-linux",
		Provenance:   types.ProvenanceFreshCompilation,
	}
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Bytes) != string(data) {
		t.Errorf("expected bytes to round-trip, got %q", got.Bytes)
	}
	if got.TargetTriple != "x86_64-linux" {
		t.Errorf("expected target triple to round-trip, got %q", got.TargetTriple)
	}
}

func TestStore_GetMissingFingerprintErrors(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected an error for a missing fingerprint")
	}
}

func TestStore_GetDetectsChecksumMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("original contents")

	a := &types.CompiledArtifact{
		Fingerprint: "fp-2",
		Bytes:       data,
		Checksum:    checksum(data),
		Provenance:  types.ProvenanceFreshCompilation,
	}
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the blob on disk without touching the index.
	if err := os.WriteFile(s.blobPath("fp-2"), []byte("tampered"), 0644); err != nil {
		t.Fatalf("failed to tamper with blob: %v", err)
	}

	if _, err := s.Get(ctx, "fp-2"); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestStore_DeleteRemovesBlobAndMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("delete me")

	a := &types.CompiledArtifact{Fingerprint: "fp-3", Bytes: data, Checksum: checksum(data)}
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(ctx, "fp-3"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "fp-3"); err == nil {
		t.Fatal("expected artifact to be gone after Delete")
	}
}

func TestStore_ListReturnsMetadataOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data := []byte{byte(i)}
		a := &types.CompiledArtifact{Fingerprint: string(rune('a' + i)), Bytes: data, Checksum: checksum(data)}
		if err := s.Put(ctx, a); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	records, err := s.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

func TestLookup_CacheMissReturnsFalseWithoutError(t *testing.T) {
	s := newTestStore(t)
	artifact, ok, err := s.Lookup(context.Background(), "never-built")
	if err != nil {
		t.Fatalf("expected nil error on clean miss, got %v", err)
	}
	if ok || artifact != nil {
		t.Fatalf("expected a clean miss, got ok=%v artifact=%v", ok, artifact)
	}
}

func TestLookup_HitTagsProvenanceAsCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("cached binary")

	orig := &types.CompiledArtifact{
		Fingerprint: "fp-cache",
		Bytes:       data,
		Checksum:    checksum(data),
		Provenance:  types.ProvenanceFreshCompilation,
	}
	if err := s.Store(ctx, orig); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	artifact, ok, err := s.Lookup(ctx, "fp-cache")
	if err != nil || !ok {
		t.Fatalf("expected a cache hit, got ok=%v err=%v", ok, err)
	}
	if artifact.Provenance != types.ProvenanceCache {
		t.Errorf("expected Provenance to be overwritten to Cache, got %q", artifact.Provenance)
	}
}
