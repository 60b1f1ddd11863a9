package artifact

import (
	"context"
	"errors"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// Lookup implements build.CacheLookup. Any failure to read the
// metadata row (a missing row or a database error alike) is a clean
// miss (ok=false, err=nil). Only CacheCorruption (an unreadable blob
// or a checksum mismatch) is surfaced, so the caller can decide
// whether to treat it as a hard stop or fall through to a fresh compile.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (*types.CompiledArtifact, bool, error) {
	artifact, err := s.Get(ctx, fingerprint)
	if err != nil {
		var ae *errdefs.Error
		if errors.As(err, &ae) && ae.Code == errdefs.CodeCacheCorruption {
			return nil, false, err
		}
		return nil, false, nil
	}
	artifact.Provenance = types.ProvenanceCache
	return artifact, true, nil
}

// Store implements build.CacheLookup.
func (s *Store) Store(ctx context.Context, artifact *types.CompiledArtifact) error {
	return s.Put(ctx, artifact)
}
