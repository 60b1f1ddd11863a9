package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sealrunner/sealrunner/pkg/build"
	"github.com/sealrunner/sealrunner/pkg/modules"
	"github.com/sealrunner/sealrunner/pkg/plan"
	"github.com/sealrunner/sealrunner/pkg/template"
	"github.com/sealrunner/sealrunner/pkg/types"
)

func newCompileCommand() *cobra.Command {
	var (
		planPath     string
		outputDir    string
		targetFlag   string
		deploymentID string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Ingest a plan and compile its binary deployments",
		Long: `compile ingests an execution plan, resolves and validates every
module its binary deployments reference, generates the sealed
runtime source for each deployment, and compiles it through the
build driver, consulting the artifact cache before compiling.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runCompile(cmd.Context(), a, compileOptions{
				planPath:     planPath,
				outputDir:    outputDir,
				targetFlag:   targetFlag,
				deploymentID: deploymentID,
				manifestPath: manifestPath,
				force:        false,
			})
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "-", "path to the execution plan document, or - for stdin")
	cmd.Flags().StringVar(&outputDir, "output", "./dist", "directory to write compiled binaries and checksums to")
	cmd.Flags().StringVar(&targetFlag, "target", "", "override target triple (<arch>-<os>) for every deployment")
	cmd.Flags().StringVar(&deploymentID, "deployment", "", "compile only the binary deployment with this ID (default: all)")
	cmd.Flags().StringVar(&manifestPath, "modules", "", "path to a JSON module manifest overriding module sources")

	return cmd
}

func newRebuildCommand() *cobra.Command {
	var (
		planPath     string
		outputDir    string
		targetFlag   string
		deploymentID string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompile a plan's binary deployments, bypassing the artifact cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runCompile(cmd.Context(), a, compileOptions{
				planPath:     planPath,
				outputDir:    outputDir,
				targetFlag:   targetFlag,
				deploymentID: deploymentID,
				manifestPath: manifestPath,
				force:        true,
			})
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "-", "path to the execution plan document, or - for stdin")
	cmd.Flags().StringVar(&outputDir, "output", "./dist", "directory to write compiled binaries and checksums to")
	cmd.Flags().StringVar(&targetFlag, "target", "", "override target triple (<arch>-<os>) for every deployment")
	cmd.Flags().StringVar(&deploymentID, "deployment", "", "rebuild only the binary deployment with this ID (default: all)")
	cmd.Flags().StringVar(&manifestPath, "modules", "", "path to a JSON module manifest overriding module sources")

	return cmd
}

type compileOptions struct {
	planPath     string
	outputDir    string
	targetFlag   string
	deploymentID string
	manifestPath string
	force        bool
}

func runCompile(ctx context.Context, a *app, opts compileOptions) error {
	document, err := readDocument(opts.planPath)
	if err != nil {
		return newArgError("failed to read plan: %w", err)
	}

	parser := plan.NewParser()
	executionPlan, err := parser.Ingest(ctx, document, plan.Options{})
	if err != nil {
		return fmt.Errorf("failed to ingest plan: %w", err)
	}
	executionPlan = parser.Normalize(executionPlan)

	manifest, err := loadModuleManifest(opts.manifestPath)
	if err != nil {
		return newArgError("failed to load module manifest: %w", err)
	}

	var overrideArch, overrideOS string
	if opts.targetFlag != "" {
		overrideArch, overrideOS, err = parseTargetTriple(opts.targetFlag)
		if err != nil {
			return newArgError("%w", err)
		}
	}

	deployments := executionPlan.BinaryDeployments
	if opts.deploymentID != "" {
		deployments = filterDeployments(deployments, opts.deploymentID)
		if len(deployments) == 0 {
			return newArgError("no binary deployment with ID %q in plan", opts.deploymentID)
		}
	}
	if len(deployments) == 0 {
		return fmt.Errorf("plan has no binary deployments to compile")
	}

	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	loader := modules.NewLoader(ctx, modules.Options{})
	defer loader.Close(ctx)
	generator, err := template.NewGenerator()
	if err != nil {
		return fmt.Errorf("failed to build template generator: %w", err)
	}
	driver := build.NewDriver(build.Config{Cache: a.artifact})

	planHash, err := plan.Hash(executionPlan)
	if err != nil {
		return fmt.Errorf("failed to fingerprint plan: %w", err)
	}

	failed := false
	for _, dep := range deployments {
		if overrideArch != "" {
			dep.Requirements.TargetArch = overrideArch
			dep.Requirements.TargetOS = overrideOS
		}

		specs := moduleSpecsFor(dep.ModuleNames, manifest)
		resolved, err := loader.Load(ctx, specs)
		if err != nil {
			log.Error().Err(err).Str("deployment", dep.ID).Msg("module resolution or validation failed")
			failed = true
			continue
		}

		sourceTree, err := generator.Generate(dep, resolved)
		if err != nil {
			log.Error().Err(err).Str("deployment", dep.ID).Msg("source generation failed")
			failed = true
			continue
		}

		fingerprint := deploymentFingerprint(planHash, dep, sourceTree)
		if opts.force {
			_ = a.artifact.Delete(ctx, fingerprint)
		}

		artifact, err := driver.Build(ctx, fingerprint, sourceTree, dep.Requirements)
		if err != nil {
			log.Error().Err(err).Str("deployment", dep.ID).Msg("compilation failed")
			failed = true
			continue
		}

		outPath := filepath.Join(opts.outputDir, outputName(dep, artifact.TargetTriple))
		if err := os.WriteFile(outPath, artifact.Bytes, 0755); err != nil {
			return fmt.Errorf("failed to write compiled binary: %w", err)
		}
		if err := os.WriteFile(outPath+".sha256", []byte(artifact.Checksum+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write checksum sidecar: %w", err)
		}

		log.Info().
			Str("deployment", dep.ID).
			Str("target", artifact.TargetTriple).
			Str("provenance", string(artifact.Provenance)).
			Str("fingerprint", fingerprint).
			Str("output", outPath).
			Msg("compiled binary deployment")
	}

	if failed {
		return fmt.Errorf("one or more binary deployments failed to compile")
	}
	return nil
}

func filterDeployments(deployments []types.BinaryDeployment, id string) []types.BinaryDeployment {
	var out []types.BinaryDeployment
	for _, d := range deployments {
		if d.ID == id {
			out = append(out, d)
		}
	}
	return out
}

func outputName(dep types.BinaryDeployment, targetTriple string) string {
	name := dep.BinaryName
	if name == "" {
		name = dep.ID
	}
	return fmt.Sprintf("%s-%s", name, targetTriple)
}

// deploymentFingerprint keys the build cache on the plan's overall
// hash, the deployment's own identity and requirements, and the
// generated source tree, so a change to any of those forces a fresh
// compile rather than a stale cache hit.
func deploymentFingerprint(planHash string, dep types.BinaryDeployment, tree map[string][]byte) string {
	h := sha256.New()
	h.Write([]byte(planHash))
	h.Write([]byte(dep.ID))
	h.Write([]byte(dep.Requirements.TargetTriple()))
	for _, name := range sortedKeys(tree) {
		h.Write([]byte(name))
		h.Write(tree[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(tree map[string][]byte) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func loadModuleManifest(path string) (map[string]types.ModuleSpec, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var manifest map[string]types.ModuleSpec
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid module manifest JSON: %w", err)
	}
	return manifest, nil
}
