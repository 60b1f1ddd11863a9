// Package modules implements the ModuleLoader: discovery, fetching,
// and validation of module implementations referenced by a plan's
// tasks and handlers.
package modules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// SourceTree is a resolved module's file contents, keyed by path
// relative to the module root.
type SourceTree map[string][]byte

// Resolver fetches a module's source tree for one ModuleSource kind.
type Resolver interface {
	CanResolve(source types.ModuleSource) bool
	Resolve(ctx context.Context, source types.ModuleSource) (SourceTree, error)
	CacheKey(source types.ModuleSource) string
}

// builtinResolver serves modules bundled with sealrunner itself (see
// builtin.go), never touching the network or filesystem.
type builtinResolver struct{}

func (builtinResolver) CanResolve(source types.ModuleSource) bool {
	return source.Kind == types.ModuleSourceBuiltin
}

func (builtinResolver) Resolve(_ context.Context, source types.ModuleSource) (SourceTree, error) {
	tree, ok := builtinModules[source.Location]
	if !ok {
		return nil, errdefs.NewPermanent(fmt.Sprintf("no builtin module %q", source.Location), nil).
			WithCode(errdefs.CodeResolveFailed)
	}
	return tree, nil
}

func (builtinResolver) CacheKey(source types.ModuleSource) string {
	return "builtin:" + source.Location
}

// fileResolver reads a module source tree from the local filesystem.
type fileResolver struct{}

func (fileResolver) CanResolve(source types.ModuleSource) bool {
	return source.Kind == types.ModuleSourceFile
}

func (fileResolver) Resolve(_ context.Context, source types.ModuleSource) (SourceTree, error) {
	tree := SourceTree{}
	err := filepath.Walk(source.Location, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(source.Location, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[rel] = data
		return nil
	})
	if err != nil {
		return nil, errdefs.NewPermanent("failed to read module source tree", err).
			WithCode(errdefs.CodeResolveFailed).WithResource(source.Location)
	}
	return tree, nil
}

func (fileResolver) CacheKey(source types.ModuleSource) string {
	return "file:" + source.Location
}

// gitResolver fetches a module from a version-controlled repository
// by shallow-cloning it into a scratch directory, then delegating to
// fileResolver for the actual tree read.
type gitResolver struct {
	workDir string
}

func (gitResolver) CanResolve(source types.ModuleSource) bool {
	return source.Kind == types.ModuleSourceGit
}

func (r gitResolver) Resolve(ctx context.Context, source types.ModuleSource) (SourceTree, error) {
	dest, err := os.MkdirTemp(r.workDir, "module-git-*")
	if err != nil {
		return nil, errdefs.NewTransient("failed to create scratch dir", err).WithCode(errdefs.CodeResolveFailed)
	}
	defer os.RemoveAll(dest)

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", source.Location, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, errdefs.NewTransient("git clone failed", err).
			WithCode(errdefs.CodeResolveFailed).
			WithDetail("output", string(out))
	}

	return fileResolver{}.Resolve(ctx, types.ModuleSource{Kind: types.ModuleSourceFile, Location: dest})
}

func (gitResolver) CacheKey(source types.ModuleSource) string {
	return "git:" + source.Location
}

// httpResolver fetches a single-file module (or a packaged archive
// handled upstream) over plain HTTP(S).
type httpResolver struct {
	client *http.Client
}

func (httpResolver) CanResolve(source types.ModuleSource) bool {
	return source.Kind == types.ModuleSourceHTTP
}

func (r httpResolver) Resolve(ctx context.Context, source types.ModuleSource) (SourceTree, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Location, nil)
	if err != nil {
		return nil, errdefs.NewPermanent("invalid module URL", err).WithCode(errdefs.CodeResolveFailed)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errdefs.NewTransient("module fetch failed", err).WithCode(errdefs.CodeResolveFailed)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.NewTransient(fmt.Sprintf("module fetch returned %d", resp.StatusCode), nil).
			WithCode(errdefs.CodeResolveFailed)
	}
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return SourceTree{"module.src": buf}, nil
}

func (httpResolver) CacheKey(source types.ModuleSource) string {
	return "http:" + source.Location
}

// registryResolver fetches a module from a named module registry,
// addressed the same way as an HTTP source but with a registry-
// specific location format (`registry-name/module@version`).
type registryResolver struct {
	http httpResolver
	base string
}

func (registryResolver) CanResolve(source types.ModuleSource) bool {
	return source.Kind == types.ModuleSourceRegistry
}

func (r registryResolver) Resolve(ctx context.Context, source types.ModuleSource) (SourceTree, error) {
	url := fmt.Sprintf("%s/%s", r.base, source.Location)
	return r.http.Resolve(ctx, types.ModuleSource{Kind: types.ModuleSourceHTTP, Location: url})
}

func (registryResolver) CacheKey(source types.ModuleSource) string {
	return "registry:" + source.Location
}

// inlineResolver serves a module whose entire source is carried
// directly in the ModuleSource's Location field.
type inlineResolver struct{}

func (inlineResolver) CanResolve(source types.ModuleSource) bool {
	return source.Kind == types.ModuleSourceInline
}

func (inlineResolver) Resolve(_ context.Context, source types.ModuleSource) (SourceTree, error) {
	return SourceTree{"module.src": []byte(source.Location)}, nil
}

func (inlineResolver) CacheKey(source types.ModuleSource) string {
	sum := sha256.Sum256([]byte(source.Location))
	return "inline:" + hex.EncodeToString(sum[:8])
}

// defaultResolvers returns the standard resolver chain in selection order.
func defaultResolvers(workDir string) []Resolver {
	return []Resolver{
		builtinResolver{},
		fileResolver{},
		gitResolver{workDir: workDir},
		httpResolver{client: &http.Client{Timeout: 30 * time.Second}},
		registryResolver{http: httpResolver{client: &http.Client{Timeout: 30 * time.Second}}, base: "https://modules.sealrunner.dev"},
		inlineResolver{},
	}
}
