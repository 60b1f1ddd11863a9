package modules

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// Loader resolves, validates, orders, and caches every module a plan
// references, producing the set TemplateGenerator embeds into a
// sealed binary.
type Loader struct {
	resolvers []Resolver
	validator *Validator
	cache     *cache
}

// Options configures a Loader.
type Options struct {
	WorkDir       string
	CacheCapacity int
	CacheTTL      time.Duration
}

// NewLoader constructs a Loader with the default resolver chain.
func NewLoader(ctx context.Context, opts Options) *Loader {
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.CacheCapacity == 0 {
		opts.CacheCapacity = 256
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = time.Hour
	}
	return &Loader{
		resolvers: defaultResolvers(opts.WorkDir),
		validator: NewValidator(ctx),
		cache:     newCache(opts.CacheCapacity, opts.CacheTTL),
	}
}

// Close releases resources held by the loader's validator.
func (l *Loader) Close(ctx context.Context) error {
	return l.validator.Close(ctx)
}

// ResolvedModule is one module's source tree alongside its spec, in
// dependency order.
type ResolvedModule struct {
	Spec types.ModuleSpec
	Tree SourceTree
}

// Load resolves, validates (against declared security tier), and
// orders the given module specs so that every module appears after
// all of its DependsOn entries. A DependencyCycle error is returned
// naming the cycle if one exists.
func (l *Loader) Load(ctx context.Context, specs []types.ModuleSpec) ([]ResolvedModule, error) {
	ordered, err := topoSort(specs)
	if err != nil {
		return nil, err
	}

	out := make([]ResolvedModule, 0, len(ordered))
	for _, spec := range ordered {
		tree, err := l.resolveOne(ctx, spec)
		if err != nil {
			return nil, err
		}
		if err := l.validator.Validate(ctx, spec, tree); err != nil {
			return nil, err
		}
		out = append(out, ResolvedModule{Spec: spec, Tree: tree})
	}
	return out, nil
}

func (l *Loader) resolveOne(ctx context.Context, spec types.ModuleSpec) (SourceTree, error) {
	for _, r := range l.resolvers {
		if !r.CanResolve(spec.Source) {
			continue
		}
		key := cacheKey(spec.Name, spec.Version, r.CacheKey(spec.Source))
		if tree, ok := l.cache.get(key); ok {
			return tree, nil
		}
		tree, err := r.Resolve(ctx, spec.Source)
		if err != nil {
			return nil, err
		}
		l.cache.put(key, tree)
		return tree, nil
	}
	return nil, errdefs.NewPermanent(
		fmt.Sprintf("no resolver can handle module %q with source kind %q", spec.Name, spec.Source.Kind), nil,
	).WithCode(errdefs.CodeResolveFailed).WithResource(spec.Name)
}

// topoSort orders specs so every module follows its dependencies,
// using Kahn's algorithm (mirroring the DAG leveling used elsewhere
// in sealrunner for task scheduling).
func topoSort(specs []types.ModuleSpec) ([]types.ModuleSpec, error) {
	byName := make(map[string]types.ModuleSpec, len(specs))
	inDegree := make(map[string]int, len(specs))
	dependents := make(map[string][]string)

	for _, s := range specs {
		byName[s.Name] = s
		if _, ok := inDegree[s.Name]; !ok {
			inDegree[s.Name] = 0
		}
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, errdefs.NewPermanent(
					fmt.Sprintf("module %q depends on unresolved module %q", s.Name, dep), nil,
				).WithCode(errdefs.CodeModuleNotFound).WithResource(dep)
			}
			inDegree[s.Name]++
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	var queue []string
	for _, s := range specs {
		if inDegree[s.Name] == 0 {
			queue = append(queue, s.Name)
		}
	}

	var ordered []types.ModuleSpec
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byName[name])
		for _, next := range dependents[name] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(ordered) != len(specs) {
		cycle := make([]string, 0)
		for name, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		return nil, errdefs.NewPermanent(
			fmt.Sprintf("dependency cycle among modules: %v", cycle), nil,
		).WithCode(errdefs.CodeDependencyCycle)
	}
	return ordered, nil
}
