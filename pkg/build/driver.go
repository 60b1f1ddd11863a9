// Package build implements the BuildDriver: compiling a rendered
// runner source tree into a statically-linked, target-specific
// binary, with fingerprint-keyed caching so an unchanged plan/module
// set is never recompiled.
package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// mandatoryTargets are the target triples every build run must be
// able to produce, per spec.md §4.4.
var mandatoryTargets = []types.CompilationRequirements{
	{TargetArch: "x86_64", TargetOS: "linux"},
	{TargetArch: "aarch64", TargetOS: "linux"},
	{TargetArch: "x86_64", TargetOS: "darwin"},
	{TargetArch: "aarch64", TargetOS: "darwin"},
}

// archGoarch maps sealrunner's canonical arch names to Go's GOARCH.
var archGoarch = map[string]string{
	"x86_64":  "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
	"amd64":   "amd64",
}

// osGoos maps sealrunner's canonical OS names to Go's GOOS.
var osGoos = map[string]string{
	"linux":  "linux",
	"darwin": "darwin",
}

// Backend compiles one source tree for one target. Real backends
// shell out to the Go toolchain; a test backend can fake compilation
// without touching the filesystem or a subprocess.
type Backend interface {
	SupportsTarget(req types.CompilationRequirements) bool
	Capabilities() []string
	Compile(ctx context.Context, tree map[string][]byte, req types.CompilationRequirements, outputPath string) error
}

// goToolchainBackend invokes `go build` against a rendered source
// tree written to a scratch directory, cross-compiling via
// CGO_ENABLED=0 + GOOS/GOARCH, mirroring the command the teacher's
// BuildRunnerBinary only documented as a placeholder.
type goToolchainBackend struct {
	scratchDir string
}

func (b goToolchainBackend) SupportsTarget(req types.CompilationRequirements) bool {
	_, archOK := archGoarch[req.TargetArch]
	_, osOK := osGoos[req.TargetOS]
	return archOK && osOK
}

func (b goToolchainBackend) Capabilities() []string {
	return []string{"cross-compile", "static-link", "strip"}
}

func (b goToolchainBackend) Compile(ctx context.Context, tree map[string][]byte, req types.CompilationRequirements, outputPath string) error {
	srcDir, err := os.MkdirTemp(b.scratchDir, "sealrunner-build-*")
	if err != nil {
		return errdefs.NewTransient("failed to create build scratch dir", err).WithCode(errdefs.CodeCompilationFailed)
	}
	defer os.RemoveAll(srcDir)

	for relPath, content := range tree {
		full := filepath.Join(srcDir, relPath)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return errdefs.NewPermanent("failed to prepare source tree", err).WithCode(errdefs.CodeCompilationFailed)
		}
		if err := os.WriteFile(full, content, 0644); err != nil {
			return errdefs.NewPermanent("failed to write source file", err).WithCode(errdefs.CodeCompilationFailed)
		}
	}

	goarch := archGoarch[req.TargetArch]
	goos := osGoos[req.TargetOS]

	ldflags := "-s -w"
	args := []string{"build"}
	if goos != "" && goarch != "" {
		args = append(args, "-ldflags", ldflags, "-o", outputPath, ".")
	}

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = srcDir
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=0",
		"GOOS="+goos,
		"GOARCH="+goarch,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errdefs.NewPermanent("compilation failed", err).
			WithCode(errdefs.CodeCompilationFailed).
			WithDetail("stderr", stderr.String()).
			WithDetail("target", req.TargetTriple())
	}
	return nil
}

// NewGoToolchainBackend constructs the default os/exec-backed Backend.
func NewGoToolchainBackend(scratchDir string) Backend {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return goToolchainBackend{scratchDir: scratchDir}
}

// CacheLookup resolves a cached artifact by fingerprint. ArtifactStore
// implements this; BuildDriver depends on the narrow interface so it
// never needs ArtifactStore's full API.
type CacheLookup interface {
	Lookup(ctx context.Context, fingerprint string) (*types.CompiledArtifact, bool, error)
	Store(ctx context.Context, artifact *types.CompiledArtifact) error
}

// Driver is the BuildDriver: selects a backend per target,
// cross-compiles, enforces the binary size ceiling, and consults a
// fingerprint-keyed cache ahead of every build.
type Driver struct {
	backends    []Backend
	cache       CacheLookup
	maxBinBytes int64
	parallelism int
}

// Config configures a Driver.
type Config struct {
	Backends       []Backend
	Cache          CacheLookup
	MaxBinaryBytes int64
	Parallelism    int
}

// NewDriver constructs a Driver. If no backends are given, the
// default Go-toolchain backend covers all four mandatory targets.
func NewDriver(cfg Config) *Driver {
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = []Backend{NewGoToolchainBackend("")}
	}
	if cfg.MaxBinaryBytes == 0 {
		cfg.MaxBinaryBytes = 64 * 1024 * 1024
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 4
	}
	return &Driver{
		backends:    backends,
		cache:       cfg.Cache,
		maxBinBytes: cfg.MaxBinaryBytes,
		parallelism: cfg.Parallelism,
	}
}

// Build compiles tree for req, keyed by fingerprint. A cache hit
// returns the stored artifact with Provenance Cache without invoking
// any backend; a miss compiles fresh, stores the result, and returns
// it with Provenance FreshCompilation.
func (d *Driver) Build(ctx context.Context, fingerprint string, tree map[string][]byte, req types.CompilationRequirements) (*types.CompiledArtifact, error) {
	if d.cache != nil {
		if artifact, ok, err := d.cache.Lookup(ctx, fingerprint); err == nil && ok {
			return artifact, nil
		}
	}

	backend, err := d.selectBackend(req)
	if err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp("", "sealrunner-artifact-*")
	if err != nil {
		return nil, errdefs.NewTransient("failed to create output dir", err).WithCode(errdefs.CodeCompilationFailed)
	}
	defer os.RemoveAll(outDir)
	outputPath := filepath.Join(outDir, "runner")

	start := time.Now()
	if err := backend.Compile(ctx, tree, req, outputPath); err != nil {
		return nil, err
	}
	duration := time.Since(start)

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, errdefs.NewPermanent("compiled binary missing after build", err).WithCode(errdefs.CodeCompilationFailed)
	}
	if int64(len(data)) > d.maxBinBytes {
		return nil, errdefs.NewPermanent(
			fmt.Sprintf("binary size %d exceeds limit %d for target %s", len(data), d.maxBinBytes, req.TargetTriple()), nil,
		).WithCode(errdefs.CodeBinarySizeExceeded).WithResource(req.TargetTriple())
	}

	artifact := &types.CompiledArtifact{
		Fingerprint:   fingerprint,
		Bytes:         data,
		Checksum:      checksum(data),
		TargetTriple:  req.TargetTriple(),
		BuildDuration: duration,
		Provenance:    types.ProvenanceFreshCompilation,
	}

	if d.cache != nil {
		if err := d.cache.Store(ctx, artifact); err != nil {
			return nil, err
		}
	}
	return artifact, nil
}

func (d *Driver) selectBackend(req types.CompilationRequirements) (Backend, error) {
	for _, b := range d.backends {
		if b.SupportsTarget(req) {
			return b, nil
		}
	}
	return nil, errdefs.NewPermanent(
		fmt.Sprintf("no backend supports target %s", req.TargetTriple()), nil,
	).WithCode(errdefs.CodeUnsupportedTarget).WithResource(req.TargetTriple())
}

// MandatoryTargets returns the target set every BuildDriver must
// support per spec.md §4.4.
func MandatoryTargets() []types.CompilationRequirements {
	out := make([]types.CompilationRequirements, len(mandatoryTargets))
	copy(out, mandatoryTargets)
	return out
}
