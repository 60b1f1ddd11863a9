// Package artifact implements the ArtifactStore: content-addressed
// persistence for CompiledArtifacts, keyed by fingerprint. Metadata
// (checksum, target triple, provenance, build duration) lives in
// pkg/stores' artifacts table; the binary's bytes live alongside it on
// the filesystem. Eviction is explicit only — nothing here silently
// drops a cached binary, unlike pkg/modules' LRU+TTL resolution cache.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/stores"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// Store is the ArtifactStore: a fingerprint-keyed index backed by
// stores.Store plus a blob directory on disk.
type Store struct {
	meta    stores.Store
	blobDir string
}

// New constructs a Store. blobDir is created if it does not exist.
func New(meta stores.Store, blobDir string) (*Store, error) {
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, errdefs.NewPermanent("failed to create artifact blob directory", err).
			WithCode(errdefs.CodeInternal)
	}
	return &Store{meta: meta, blobDir: blobDir}, nil
}

func (s *Store) blobPath(fingerprint string) string {
	return filepath.Join(s.blobDir, fingerprint)
}

// Put persists artifact's bytes to the blob directory and its
// metadata to the index, overwriting any prior entry at the same
// fingerprint (the build inputs are identical by construction, so the
// bytes are expected to match too).
func (s *Store) Put(ctx context.Context, a *types.CompiledArtifact) error {
	blobPath := s.blobPath(a.Fingerprint)
	if err := os.WriteFile(blobPath, a.Bytes, 0644); err != nil {
		return errdefs.NewTransient("failed to write artifact blob", err).
			WithCode(errdefs.CodeInternal).WithResource(a.Fingerprint)
	}

	record := &stores.ArtifactRecord{
		Fingerprint:   a.Fingerprint,
		TargetTriple:  a.TargetTriple,
		Checksum:      a.Checksum,
		BlobPath:      blobPath,
		SizeBytes:     int64(len(a.Bytes)),
		Provenance:    string(a.Provenance),
		BuildDuration: a.BuildDuration,
		SourceRef:     a.SourceRef,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.meta.UpsertArtifact(ctx, record); err != nil {
		return fmt.Errorf("failed to persist artifact metadata: %w", err)
	}
	return nil
}

// Get retrieves the artifact for fingerprint, reading its bytes from
// disk and verifying them against the stored checksum. A checksum
// mismatch means the blob directory was tampered with or corrupted
// out from under the index, and is reported as CacheCorruption.
func (s *Store) Get(ctx context.Context, fingerprint string) (*types.CompiledArtifact, error) {
	record, err := s.meta.GetArtifact(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("artifact not found: %w", err)
	}

	data, err := os.ReadFile(record.BlobPath)
	if err != nil {
		return nil, errdefs.NewPermanent("failed to read artifact blob", err).
			WithCode(errdefs.CodeCacheCorruption).WithResource(fingerprint)
	}

	if checksum(data) != record.Checksum {
		return nil, errdefs.NewPermanent("artifact blob checksum mismatch", nil).
			WithCode(errdefs.CodeCacheCorruption).WithResource(fingerprint).
			WithDetail("expected", record.Checksum).WithDetail("actual", checksum(data))
	}

	return &types.CompiledArtifact{
		Fingerprint:   record.Fingerprint,
		Bytes:         data,
		Checksum:      record.Checksum,
		TargetTriple:  record.TargetTriple,
		BuildDuration: record.BuildDuration,
		Provenance:    types.Provenance(record.Provenance),
		SourceRef:     record.SourceRef,
	}, nil
}

// List returns up to limit artifact records (metadata only, no bytes)
// ordered as stores.Store.ListArtifacts returns them.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*stores.ArtifactRecord, error) {
	return s.meta.ListArtifacts(ctx, limit, offset)
}

// Delete removes both the blob and its metadata entry. Missing blob
// files are tolerated (the index and filesystem can already have
// drifted from a prior partial cleanup); a missing metadata row is not.
func (s *Store) Delete(ctx context.Context, fingerprint string) error {
	if err := s.meta.DeleteArtifact(ctx, fingerprint); err != nil {
		return fmt.Errorf("failed to delete artifact metadata: %w", err)
	}
	if err := os.Remove(s.blobPath(fingerprint)); err != nil && !os.IsNotExist(err) {
		return errdefs.NewTransient("failed to remove artifact blob", err).
			WithCode(errdefs.CodeInternal).WithResource(fingerprint)
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
