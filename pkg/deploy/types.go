package deploy

import (
	"context"
	"time"
)

// Strategy selects how an artifact is fanned out across hosts.
type Strategy string

const (
	StrategyParallel  Strategy = "parallel"
	StrategyRolling   Strategy = "rolling"
	StrategyBlueGreen Strategy = "blue_green"
	StrategyCanary    Strategy = "canary"
)

// Target is one host to deploy to.
type Target struct {
	Host       string
	RemotePath string
}

// Request describes one deployment run.
type Request struct {
	RunID      string
	Fingerprint string
	Checksum    string
	Version     string
	// LocalArtifactPath is the compiled binary's bytes already written
	// to a local path, ready for SFTP upload.
	LocalArtifactPath string
	Targets           []Target
	Strategy          Strategy

	// RollingBatchSize is the batch size for StrategyRolling. Ignored
	// otherwise; a non-positive value defaults to 1.
	RollingBatchSize int

	// CanaryPercent is the percentage (1-100) of targets deployed to
	// in the first canary wave. Ignored for other strategies.
	CanaryPercent int

	// CanaryFailureThreshold is the number of canary-wave failures
	// that aborts the remainder. Zero means any single failure aborts.
	CanaryFailureThreshold int

	// PerHostTimeout bounds one host's entire deploy protocol
	// (upload, chmod, rename, verify). Defaults to 2 minutes.
	PerHostTimeout time.Duration

	// Parallelism bounds concurrent in-flight hosts within one batch.
	// Defaults to 8.
	Parallelism int
}

// HostResult is the outcome of deploying to one host.
type HostResult struct {
	Host      string
	Status    string // "verified", "failed", "skipped", "rolled_back"
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
}

// Report summarizes one orchestrator run across all targets.
type Report struct {
	RunID    string
	Results  []HostResult
	Aborted  bool
	AbortReason string
}

// Transport is the narrow subset of ssh.Transport the orchestrator
// needs, so tests can supply a fake without establishing a real SSH
// connection. pkg/transports/ssh.Transport satisfies this directly.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	ExecuteCommand(ctx context.Context, cmd string) (stdout string, stderr string, err error)
	UploadFile(ctx context.Context, localPath string, remotePath string, mode uint32) error
	SetFilePermissions(ctx context.Context, remotePath string, mode uint32) error
	ComputeChecksum(ctx context.Context, remotePath string) (string, error)
}

// TransportFactory builds (or retrieves from a pool) a Transport for
// one host. Call sites are responsible for closing what they open if
// the factory doesn't pool connections itself.
type TransportFactory func(host string) (Transport, error)
