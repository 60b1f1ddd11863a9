// Package plan implements PlanIngest & Normalizer: parsing of plan
// documents in the current or a legacy schema, structural validation,
// and deterministic migration into the canonical types.ExecutionPlan.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// rawDocument is the tolerant on-the-wire shape: it accepts both
// current-schema and legacy-schema field names so Ingest can detect
// and migrate them deterministically.
type rawDocument struct {
	ID                string             `json:"id"`
	Plays             []json.RawMessage  `json:"plays"`
	BinaryDeployments []rawDeployment    `json:"binary_deployments"`
	Metadata          map[string]any     `json:"metadata"`
}

type rawDeployment struct {
	ID           string                         `json:"id"`
	TargetHosts  []string                       `json:"target_hosts"`
	BinaryName   string                         `json:"binary_name"`
	Tasks        []string                       `json:"tasks"`
	TaskIDs      []string                       `json:"task_ids"` // legacy alias for Tasks
	ModuleNames  []string                       `json:"module_names"`
	Embedded     types.EmbeddedData             `json:"embedded"`
	Mode         types.ExecutionMode            `json:"mode"`
	SizeEstimate int64                          `json:"size_estimate"`
	Requirements types.CompilationRequirements  `json:"requirements"`

	TargetArch        string  `json:"target_arch"`
	TargetOS          string  `json:"target_os"`
	TargetTriple      string  `json:"target_triple"`        // legacy alias, split into arch/os
	TargetArchitecture string `json:"target_architecture"`  // legacy alias for TargetTriple
	EstimatedSavings  float64 `json:"estimated_savings"`    // legacy-only field, preserved not migrated
}

// Parser ingests plan documents and normalizes them to the canonical form.
type Parser struct {
	schema *schemaRegistry
}

// NewParser constructs a Parser with the built-in plan-document schema.
func NewParser() *Parser {
	return &Parser{schema: newSchemaRegistry()}
}

// Options controls ingestion behavior.
type Options struct {
	// PreserveLegacyFields keeps legacy field values on the normalized
	// BinaryDeployment alongside their migrated equivalents.
	PreserveLegacyFields bool
}

// Ingest validates and migrates a plan document into an ExecutionPlan.
// On legacy input it migrates field aliases deterministically; migration
// is idempotent (re-running Ingest's migration step on an already
// normalized document is a no-op, since normalized documents carry no
// legacy aliases for Ingest to find).
func (p *Parser) Ingest(ctx context.Context, document []byte, opts Options) (*types.ExecutionPlan, error) {
	var raw rawDocument
	if err := json.Unmarshal(document, &raw); err != nil {
		return nil, errdefs.NewPermanent("plan document is not valid JSON", err).
			WithCode(errdefs.CodeInvalidEmbeddedPlan)
	}

	if raw.ID == "" {
		return nil, missingField("id")
	}
	if len(raw.Plays) == 0 && len(raw.BinaryDeployments) == 0 {
		return nil, missingField("plays")
	}

	if err := p.schema.validate(ctx, document); err != nil {
		return nil, errdefs.NewPermanent("plan document failed schema validation", err).
			WithCode(errdefs.CodeUnsupportedFormatVer)
	}

	plays := make([]types.Play, 0, len(raw.Plays))
	for i, rp := range raw.Plays {
		play, err := decodePlay(rp)
		if err != nil {
			return nil, errdefs.NewPermanent(fmt.Sprintf("play %d invalid", i), err).
				WithCode(errdefs.CodeMissingRequiredField)
		}
		plays = append(plays, play)
	}

	deployments := make([]types.BinaryDeployment, 0, len(raw.BinaryDeployments))
	for _, rd := range raw.BinaryDeployments {
		deployments = append(deployments, migrateDeployment(rd, opts))
	}

	execPlan := &types.ExecutionPlan{
		ID:                raw.ID,
		Plays:             plays,
		BinaryDeployments: deployments,
		Metadata:          raw.Metadata,
	}

	if err := validateTaskIDs(execPlan); err != nil {
		return nil, err
	}

	return execPlan, nil
}

func missingField(name string) error {
	return errdefs.NewPermanent(fmt.Sprintf("missing required field %q", name), nil).
		WithCode(errdefs.CodeMissingRequiredField).
		WithDetail("field", name)
}

func decodePlay(raw json.RawMessage) (types.Play, error) {
	var play types.Play
	if err := json.Unmarshal(raw, &play); err != nil {
		return play, err
	}
	if play.Name == "" {
		return play, fmt.Errorf("play missing name")
	}
	return play, nil
}

// migrateDeployment normalizes legacy field aliases on a single
// BinaryDeployment. New-format fields take precedence over legacy
// equivalents when both are present; a caller-visible warning is the
// caller's responsibility (Ingest does not fail on this case).
func migrateDeployment(raw rawDeployment, opts Options) types.BinaryDeployment {
	taskIDs := raw.Tasks
	if len(taskIDs) == 0 && len(raw.TaskIDs) > 0 {
		taskIDs = raw.TaskIDs
	}

	arch, os := raw.TargetArch, raw.TargetOS
	if arch == "" || os == "" {
		triple := raw.TargetTriple
		if triple == "" {
			triple = raw.TargetArchitecture
		}
		a, o := splitTargetTriple(triple)
		if arch == "" {
			arch = a
		}
		if os == "" {
			os = o
		}
	}

	req := raw.Requirements
	req.TargetArch = arch
	req.TargetOS = os
	req.Optimization = migrateOptimizationLevel(req.Optimization)

	dep := types.BinaryDeployment{
		ID:           raw.ID,
		TargetHosts:  raw.TargetHosts,
		BinaryName:   raw.BinaryName,
		TaskIDs:      taskIDs,
		ModuleNames:  raw.ModuleNames,
		Embedded:     raw.Embedded,
		Mode:         raw.Mode,
		SizeEstimate: raw.SizeEstimate,
		Requirements: req,
	}
	if dep.Mode == "" {
		dep.Mode = types.ModeStandalone
	}

	if opts.PreserveLegacyFields {
		dep.LegacyTaskIDs = raw.TaskIDs
		dep.LegacyTargetArchitecture = raw.TargetArchitecture
		dep.LegacyEstimatedSavings = raw.EstimatedSavings
	}

	return dep
}

// splitTargetTriple splits "<arch>-<vendor>-<os>[-<abi>]" (or the
// simpler "<arch>-<os>") into arch and OS, taking component 0 as arch
// and component 2 as OS when at least three components are present
// (the common case, e.g. "x86_64-unknown-linux-gnu"), and defaulting
// to x86_64/linux when the input has too few components to resolve.
func splitTargetTriple(triple string) (arch, os string) {
	parts := strings.Split(triple, "-")
	switch {
	case len(parts) >= 3:
		return parts[0], parts[2]
	case len(parts) == 2:
		return parts[0], parts[1]
	default:
		return "x86_64", "linux"
	}
}

// migrateOptimizationLevel maps legacy OptimizationLevel spellings onto
// the canonical set. See DESIGN.md for the Aggressive decision.
func migrateOptimizationLevel(level types.OptimizationLevel) types.OptimizationLevel {
	switch level {
	case "MinimalSize", "MinSizeRelease":
		return types.OptMinSize
	case "Aggressive":
		return types.OptReleaseWithDebug
	case "":
		return types.OptRelease
	default:
		return level
	}
}

// validateTaskIDs enforces the uniqueness and dependency-resolution
// invariants from the data model: task ids are unique within a plan,
// and every dependency id resolves to a task in the same batch or
// earlier in the play.
func validateTaskIDs(p *types.ExecutionPlan) error {
	seen := make(map[string]bool)
	for _, play := range p.Plays {
		available := make(map[string]bool)
		for _, h := range play.Handlers {
			if seen[h.ID] {
				return duplicateTaskID(h.ID)
			}
			seen[h.ID] = true
			available[h.ID] = true
		}
		for _, batch := range play.Batches {
			for _, t := range batch.Tasks {
				if seen[t.ID] {
					return duplicateTaskID(t.ID)
				}
				seen[t.ID] = true
				available[t.ID] = true
			}
			for _, t := range batch.Tasks {
				for _, dep := range t.DependsOn {
					if !available[dep] {
						return errdefs.NewPermanent(
							fmt.Sprintf("task %q depends on unresolved id %q", t.ID, dep), nil).
							WithCode(errdefs.CodeMissingRequiredField).
							WithResource(t.ID)
					}
				}
			}
		}
	}
	return nil
}

func duplicateTaskID(id string) error {
	return errdefs.NewPermanent(fmt.Sprintf("duplicate task id %q", id), nil).
		WithCode(errdefs.CodeMissingRequiredField).
		WithResource(id)
}

// Normalize re-runs migration on an already-ingested plan. Because
// migration only ever reads legacy alias fields that a normalized
// types.ExecutionPlan no longer carries, Normalize(Normalize(p)) is
// always equal to Normalize(p) — the idempotence invariant required
// by spec.
func (p *Parser) Normalize(plan *types.ExecutionPlan) *types.ExecutionPlan {
	out := *plan
	out.BinaryDeployments = make([]types.BinaryDeployment, len(plan.BinaryDeployments))
	for i, d := range plan.BinaryDeployments {
		d.Requirements.Optimization = migrateOptimizationLevel(d.Requirements.Optimization)
		out.BinaryDeployments[i] = d
	}
	return &out
}
