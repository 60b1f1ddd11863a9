package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/sealrunner/sealrunner/pkg/types"
)

// Canonicalize produces a deterministic byte representation of an
// ExecutionPlan suitable for fingerprinting: map keys are sorted by
// json.Marshal already (Go's encoding/json sorts map[string]any keys),
// but slice-valued sets that are semantically unordered (module name
// sets) are explicitly sorted here so that equivalent plans with
// differently-ordered input slices canonicalize identically.
func Canonicalize(p *types.ExecutionPlan) ([]byte, error) {
	clone := *p
	clone.BinaryDeployments = make([]types.BinaryDeployment, len(p.BinaryDeployments))
	for i, d := range p.BinaryDeployments {
		dc := d
		dc.ModuleNames = sortedCopy(d.ModuleNames)
		dc.TaskIDs = sortedCopy(d.TaskIDs)
		clone.BinaryDeployments[i] = dc
	}
	return json.Marshal(clone)
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

// Hash returns the hex SHA-256 of a plan's canonical form.
func Hash(p *types.ExecutionPlan) (string, error) {
	canon, err := Canonicalize(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalizeModuleSet canonicalizes a module set for hashing: sorted
// by (name, version) so that set order never affects the fingerprint.
func CanonicalizeModuleSet(specs []types.ModuleSpec) ([]byte, error) {
	sorted := make([]types.ModuleSpec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Version < sorted[j].Version
	})
	return json.Marshal(sorted)
}

// HashModuleSet returns the hex SHA-256 of a module set's canonical form.
func HashModuleSet(specs []types.ModuleSpec) (string, error) {
	canon, err := CanonicalizeModuleSet(specs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
