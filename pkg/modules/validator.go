package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// tierPatterns lists source substrings that are disallowed for a
// given security tier, scanning conservatively: a match is a reason
// to reject, not proof the module is unsafe, but false positives are
// the safer failure mode for a compile-time-only gate.
var tierPatterns = map[types.SecurityTier][]string{
	types.TierSandboxed: {
		"os/exec",
		"syscall.Exec",
		"net.Listen",
	},
	types.TierIsolated: {
		"os/exec",
		"syscall.Exec",
		"net.Listen",
		"net.Dial",
		"os.Open",
		"os.Create",
		"os.Remove",
		"unsafe.Pointer",
	},
}

// Validator checks a resolved module's source tree against the
// security tier its ModuleSpec declares, before it is ever embedded
// in a sealed binary.
type Validator struct {
	wasmRuntime wazero.Runtime
}

// NewValidator constructs a Validator. The wazero runtime it holds is
// used only to sandbox-execute WASM-targetable Isolated-tier modules
// during validation; it is never invoked at deploy or runtime.
func NewValidator(ctx context.Context) *Validator {
	return &Validator{wasmRuntime: wazero.NewRuntime(ctx)}
}

// Close releases the validator's wazero runtime.
func (v *Validator) Close(ctx context.Context) error {
	return v.wasmRuntime.Close(ctx)
}

// Validate confirms tree conforms to the capabilities and security
// tier declared by spec. It returns a DependencyCycle-adjacent
// ModuleValidationFailed error on the first violation found.
func (v *Validator) Validate(ctx context.Context, spec types.ModuleSpec, tree SourceTree) error {
	tier := spec.Requirements.SecurityTier
	patterns, ok := tierPatterns[tier]
	if !ok {
		// Trusted tier: no source restrictions, but still runs through
		// capability declaration checks below.
		patterns = nil
	}

	for path, content := range tree {
		text := string(content)
		for _, pattern := range patterns {
			if strings.Contains(text, pattern) {
				return errdefs.NewPermanent(
					fmt.Sprintf("module %q uses disallowed construct %q for tier %q in %s", spec.Name, pattern, tier, path),
					nil,
				).WithCode(errdefs.CodeModuleValidationFailed).WithResource(spec.Name)
			}
		}
	}

	if err := validateCapabilityDeclarations(spec); err != nil {
		return err
	}

	if tier == types.TierIsolated {
		if wasm, ok := tree["module.wasm"]; ok {
			if err := v.validateWASMConformance(ctx, spec, wasm); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateCapabilityDeclarations rejects specs that declare
// capabilities incompatible with their own tier (e.g. an Isolated
// module asking for outbound network access).
func validateCapabilityDeclarations(spec types.ModuleSpec) error {
	if spec.Requirements.SecurityTier != types.TierIsolated {
		return nil
	}
	for _, cap := range spec.Requirements.Capabilities {
		if cap == "net:outbound" || cap == "process:exec" {
			return errdefs.NewPermanent(
				fmt.Sprintf("module %q declares capability %q incompatible with Isolated tier", spec.Name, cap),
				nil,
			).WithCode(errdefs.CodeModuleValidationFailed).WithResource(spec.Name)
		}
	}
	return nil
}

// validateWASMConformance instantiates the module's WASM build inside
// a wazero sandbox with no host imports, so any import the module
// declares that isn't satisfiable by the empty host surface fails
// instantiation — proof, ahead of embedding, that the module makes no
// disallowed host calls. This check only ever runs during validation;
// compiled sealed binaries never carry a WASM runtime.
func (v *Validator) validateWASMConformance(ctx context.Context, spec types.ModuleSpec, wasm []byte) error {
	compiled, err := v.wasmRuntime.CompileModule(ctx, wasm)
	if err != nil {
		return errdefs.NewPermanent(
			fmt.Sprintf("module %q failed WASM compilation during conformance check", spec.Name), err,
		).WithCode(errdefs.CodeModuleValidationFailed).WithResource(spec.Name)
	}
	defer compiled.Close(ctx)

	for _, imp := range compiled.ImportedFunctions() {
		moduleName, name, _ := imp.Import()
		return errdefs.NewPermanent(
			fmt.Sprintf("module %q imports %s.%s, not satisfiable by the Isolated-tier host surface", spec.Name, moduleName, name), nil,
		).WithCode(errdefs.CodeModuleValidationFailed).WithResource(spec.Name)
	}

	mod, err := v.wasmRuntime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return errdefs.NewPermanent(
			fmt.Sprintf("module %q failed sandboxed instantiation", spec.Name), err,
		).WithCode(errdefs.CodeModuleValidationFailed).WithResource(spec.Name)
	}
	return mod.Close(ctx)
}
