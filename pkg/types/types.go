// Package types holds the canonical data model shared by every
// component of sealrunner: the offline compilation and deployment
// pipeline, and the runtime embedded in compiled artifacts.
//
// These types are the single canonical record set for concepts that
// otherwise drift into parallel variants across components (notably
// OptimizationLevel and target-triple handling) — every component
// consumes exactly these types rather than a component-local copy,
// except pkg/stores, which keeps TargetStatus as its own string copy
// of DeploymentStatus.
package types

import (
	"encoding/json"
	"time"
)

// ExecutionPlan is the top-level input: an ordered list of plays.
// Plans are immutable once ingested.
type ExecutionPlan struct {
	ID                string             `json:"id"`
	Plays             []Play             `json:"plays"`
	BinaryDeployments []BinaryDeployment `json:"binary_deployments,omitempty"`
	Metadata          map[string]any     `json:"metadata,omitempty"`
}

// Play groups an ordered set of task batches against a target host pattern.
type Play struct {
	Name           string         `json:"name"`
	TargetPattern  string         `json:"target_pattern"`
	SerialStrategy string         `json:"serial_strategy,omitempty"`
	Handlers       []Task         `json:"handlers,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"`
	Batches        []TaskBatch    `json:"batches"`
}

// TaskBatch is a set of tasks executed together by the runtime.
type TaskBatch struct {
	Name  string `json:"name,omitempty"`
	Tasks []Task `json:"tasks"`
}

// RetryPolicy controls task-level retry behavior.
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries,omitempty"`
	Backoff    time.Duration `json:"backoff,omitempty"`
}

// Task is a single invocation of a module with arguments.
type Task struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Module     string         `json:"module"`
	Args       map[string]any `json:"args,omitempty"`
	Condition  string         `json:"condition,omitempty"`
	Retry      RetryPolicy    `json:"retry,omitempty"`
	Timeout    time.Duration  `json:"timeout,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Notifies   []string       `json:"notifies,omitempty"` // handler task ids to notify on change
	Tags       []string       `json:"tags,omitempty"`
}

// BinaryDeployment is a plan-derived unit grouping tasks that share one binary.
type BinaryDeployment struct {
	ID           string                  `json:"id"`
	TargetHosts  []string                `json:"target_hosts"`
	BinaryName   string                  `json:"binary_name"`
	TaskIDs      []string                `json:"task_ids"`
	ModuleNames  []string                `json:"module_names"`
	Embedded     EmbeddedData            `json:"embedded"`
	Mode         ExecutionMode           `json:"mode"`
	SizeEstimate int64                   `json:"size_estimate,omitempty"`
	Requirements CompilationRequirements `json:"requirements"`

	// Legacy aliases tolerated on input, normalized away by pkg/plan.
	LegacyTaskIDs            []string `json:"task_ids_legacy,omitempty"`
	LegacyTargetArchitecture string   `json:"target_architecture,omitempty"`
	LegacyEstimatedSavings   float64  `json:"estimated_savings,omitempty"`
}

// ExecutionMode describes how a binary deployment communicates results.
type ExecutionMode string

const (
	ModeController ExecutionMode = "Controller"
	ModeStandalone ExecutionMode = "Standalone"
	ModeHybrid     ExecutionMode = "Hybrid"
)

// EmbeddedData is the payload sealed into a compiled binary.
type EmbeddedData struct {
	Plan          json.RawMessage     `json:"plan"`
	StaticFiles   []EmbeddedStaticFile `json:"static_files,omitempty"`
	Variables     map[string]any      `json:"variables,omitempty"`
	RequiredFacts []string            `json:"required_facts,omitempty"`
}

// EmbeddedStaticFile is one auxiliary file sealed into the binary.
type EmbeddedStaticFile struct {
	SourcePath string `json:"source_path"`
	DestPath   string `json:"dest_path"`
	Checksum   string `json:"checksum"`
	Size       int64  `json:"size"`
}

// OptimizationLevel is the canonical optimization set. Legacy variants
// (MinimalSize, Aggressive, MinSizeRelease) are mapped onto this set
// by pkg/plan during normalization — see DESIGN.md for the Aggressive
// mapping decision.
type OptimizationLevel string

const (
	OptDebug              OptimizationLevel = "Debug"
	OptRelease            OptimizationLevel = "Release"
	OptReleaseWithDebug   OptimizationLevel = "ReleaseWithDebugInfo"
	OptMinSize            OptimizationLevel = "MinSize"
)

// CompilationRequirements describes what BuildDriver must produce.
type CompilationRequirements struct {
	TargetArch          string            `json:"target_arch"`
	TargetOS            string            `json:"target_os"`
	MinToolchainVersion string            `json:"min_toolchain_version,omitempty"`
	CrossCompile        bool              `json:"cross_compile"`
	StaticLink          bool              `json:"static_link"`
	FeatureFlags        []string          `json:"feature_flags,omitempty"`
	Optimization        OptimizationLevel `json:"optimization"`
}

// TargetTriple returns the canonical "<arch>-<os>" form.
func (r CompilationRequirements) TargetTriple() string {
	return r.TargetArch + "-" + r.TargetOS
}

// ModuleSourceKind is the kind of source descriptor for a module.
type ModuleSourceKind string

const (
	ModuleSourceBuiltin  ModuleSourceKind = "Builtin"
	ModuleSourceFile     ModuleSourceKind = "File"
	ModuleSourceGit      ModuleSourceKind = "Git"
	ModuleSourceHTTP     ModuleSourceKind = "Http"
	ModuleSourceRegistry ModuleSourceKind = "Registry"
	ModuleSourceInline   ModuleSourceKind = "Inline"
)

// SecurityTier gates what a module is permitted to do at runtime.
type SecurityTier string

const (
	TierTrusted   SecurityTier = "Trusted"
	TierSandboxed SecurityTier = "Sandboxed"
	TierIsolated  SecurityTier = "Isolated"
)

// ModuleSource describes where a module's source tree comes from.
type ModuleSource struct {
	Kind     ModuleSourceKind `json:"kind"`
	Location string           `json:"location,omitempty"`
}

// ModuleRequirements constrains where and how a module may run.
type ModuleRequirements struct {
	Toolchain    string       `json:"toolchain,omitempty"`
	Platforms    []string     `json:"platforms,omitempty"`
	Capabilities []string     `json:"capabilities,omitempty"`
	SecurityTier SecurityTier `json:"security_tier"`
}

// ModuleSpec names a module implementation and its dependency/requirement contract.
type ModuleSpec struct {
	Name         string             `json:"name"`
	Version      string             `json:"version,omitempty"`
	Source       ModuleSource       `json:"source"`
	Checksum     string             `json:"checksum,omitempty"`
	DependsOn    []string           `json:"depends_on,omitempty"`
	Requirements ModuleRequirements `json:"requirements"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
}

// Provenance records how a CompiledArtifact came to exist.
type Provenance string

const (
	ProvenanceCache             Provenance = "Cache"
	ProvenanceFreshCompilation Provenance = "FreshCompilation"
)

// CompiledArtifact is a content-addressed compiled binary.
type CompiledArtifact struct {
	Fingerprint   string        `json:"fingerprint"`
	Bytes         []byte        `json:"-"`
	Checksum      string        `json:"checksum"`
	TargetTriple  string        `json:"target_triple"`
	BuildDuration time.Duration `json:"build_duration"`
	Provenance    Provenance    `json:"provenance"`
	SourceRef     string        `json:"source_ref,omitempty"`
}

// DeploymentStatus is the status of one DeploymentTarget. Transitions
// are monotonic except Failed -> retry-rollback.
type DeploymentStatus string

const (
	StatusPending    DeploymentStatus = "Pending"
	StatusCompiling  DeploymentStatus = "Compiling"
	StatusCompiled   DeploymentStatus = "Compiled"
	StatusDeploying  DeploymentStatus = "Deploying"
	StatusDeployed   DeploymentStatus = "Deployed"
	StatusVerified   DeploymentStatus = "Verified"
	StatusFailed     DeploymentStatus = "Failed"
)

// DeploymentTarget is one host's deployment record.
type DeploymentTarget struct {
	Host        string           `json:"host"`
	RemotePath  string           `json:"remote_path"`
	Fingerprint string           `json:"fingerprint"`
	Transport   string           `json:"transport"`
	Status      DeploymentStatus `json:"status"`
	DeployedAt  *time.Time       `json:"deployed_at,omitempty"`
	Version     string           `json:"version,omitempty"`
}

// TaskStatus is the terminal or in-flight status of a TaskResult.
type TaskStatus string

const (
	TaskPending   TaskStatus = "Pending"
	TaskRunning   TaskStatus = "Running"
	TaskSuccess   TaskStatus = "Success"
	TaskFailed    TaskStatus = "Failed"
	TaskSkipped   TaskStatus = "Skipped"
	TaskTimeout   TaskStatus = "Timeout"
	TaskCancelled TaskStatus = "Cancelled"
)

// IsTerminal reports whether the status will not change further.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskSuccess, TaskFailed, TaskSkipped, TaskTimeout, TaskCancelled:
		return true
	default:
		return false
	}
}

// TaskResult is the runtime-side record of one task's execution.
type TaskResult struct {
	TaskID    string          `json:"task_id"`
	Status    TaskStatus      `json:"status"`
	Changed   bool            `json:"changed"`
	Failed    bool            `json:"failed"`
	Skipped   bool            `json:"skipped"`
	Output    json.RawMessage `json:"output,omitempty"`
	Stdout    string          `json:"stdout,omitempty"`
	Stderr    string          `json:"stderr,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Duration  time.Duration   `json:"duration"`
	Error     string          `json:"error,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}
