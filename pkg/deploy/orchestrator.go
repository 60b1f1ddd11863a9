package deploy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/stores"
)

const (
	defaultPerHostTimeout = 2 * time.Minute
	defaultParallelism    = 8
)

// Orchestrator is the DeploymentOrchestrator: it fans an artifact out
// to a set of hosts using a chosen Strategy, verifies each upload,
// and records enough journal state to roll a host back later.
type Orchestrator struct {
	store     stores.Store
	transport TransportFactory
}

// New constructs an Orchestrator. store holds the rollback journal
// (as audit entries); target status is left to the caller to persist
// from the returned Report. transport builds a Transport for a given
// host on demand.
func New(store stores.Store, transport TransportFactory) *Orchestrator {
	return &Orchestrator{store: store, transport: transport}
}

// Deploy fans req.LocalArtifactPath out to req.Targets per
// req.Strategy and returns a Report covering every target touched
// (a Canary abort may leave some targets untouched; those are
// reported with status "skipped").
func (o *Orchestrator) Deploy(ctx context.Context, req Request) (*Report, error) {
	if req.PerHostTimeout <= 0 {
		req.PerHostTimeout = defaultPerHostTimeout
	}
	if req.Parallelism <= 0 {
		req.Parallelism = defaultParallelism
	}

	report := &Report{RunID: req.RunID}

	switch req.Strategy {
	case StrategyRolling:
		o.deployRolling(ctx, req, report)
	case StrategyBlueGreen:
		o.deployBlueGreen(ctx, req, report)
	case StrategyCanary:
		o.deployCanary(ctx, req, report)
	default:
		o.deployBatch(ctx, req, req.Targets, report)
	}

	return report, nil
}

func (o *Orchestrator) deployRolling(ctx context.Context, req Request, report *Report) {
	batchSize := req.RollingBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	for start := 0; start < len(req.Targets); start += batchSize {
		end := start + batchSize
		if end > len(req.Targets) {
			end = len(req.Targets)
		}
		o.deployBatch(ctx, req, req.Targets[start:end], report)
		if ctx.Err() != nil {
			report.Aborted = true
			report.AbortReason = ctx.Err().Error()
			return
		}
	}
}

func (o *Orchestrator) deployCanary(ctx context.Context, req Request, report *Report) {
	percent := req.CanaryPercent
	if percent <= 0 || percent > 100 {
		percent = 10
	}
	canaryCount := len(req.Targets) * percent / 100
	if canaryCount == 0 && len(req.Targets) > 0 {
		canaryCount = 1
	}

	canaryTargets := req.Targets[:canaryCount]
	remainder := req.Targets[canaryCount:]

	o.deployBatch(ctx, req, canaryTargets, report)

	failures := 0
	for _, r := range report.Results {
		if r.Status == "failed" {
			failures++
		}
	}

	threshold := req.CanaryFailureThreshold
	if failures > threshold {
		report.Aborted = true
		report.AbortReason = fmt.Sprintf("canary failures (%d) exceeded threshold (%d)", failures, threshold)
		for _, t := range remainder {
			report.Results = append(report.Results, HostResult{Host: t.Host, Status: "skipped"})
		}
		return
	}

	o.deployBatch(ctx, req, remainder, report)
}

func (o *Orchestrator) deployBlueGreen(ctx context.Context, req Request, report *Report) {
	altTargets := make([]Target, len(req.Targets))
	for i, t := range req.Targets {
		altTargets[i] = Target{Host: t.Host, RemotePath: t.RemotePath + ".green"}
	}

	altReport := &Report{}
	o.deployBatch(ctx, req, altTargets, altReport)

	anyFailed := false
	for _, r := range altReport.Results {
		if r.Status == "failed" {
			anyFailed = true
			break
		}
	}
	if anyFailed {
		report.Aborted = true
		report.AbortReason = "blue_green staging deploy had failures; swap aborted"
		report.Results = altReport.Results
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, t := range req.Targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			hostCtx, cancel := context.WithTimeout(ctx, req.PerHostTimeout)
			defer cancel()

			transport, err := o.transport(t.Host)
			if err != nil {
				mu.Lock()
				report.Results = append(report.Results, HostResult{Host: t.Host, Status: "failed", Error: err.Error()})
				mu.Unlock()
				return
			}
			if err := transport.Connect(hostCtx); err != nil {
				mu.Lock()
				report.Results = append(report.Results, HostResult{Host: t.Host, Status: "failed", Error: fmt.Sprintf("connect failed: %v", err)})
				mu.Unlock()
				return
			}
			defer transport.Disconnect()

			swapCmd := fmt.Sprintf("mv -f %s %s.prev 2>/dev/null; mv -f %s.green %s",
				shellQuote(t.RemotePath), shellQuote(t.RemotePath), shellQuote(t.RemotePath), shellQuote(t.RemotePath))
			if _, stderr, err := transport.ExecuteCommand(hostCtx, swapCmd); err != nil {
				mu.Lock()
				report.Results = append(report.Results, HostResult{Host: t.Host, Status: "failed", Error: fmt.Sprintf("swap failed: %v (%s)", err, stderr)})
				mu.Unlock()
				return
			}

			mu.Lock()
			report.Results = append(report.Results, HostResult{Host: t.Host, Status: "verified"})
			mu.Unlock()
		}(t)
	}
	wg.Wait()
}

// deployBatch runs the per-host protocol against targets with bounded
// concurrency, appending each outcome to report.Results.
func (o *Orchestrator) deployBatch(ctx context.Context, req Request, targets []Target, report *Report) {
	sem := make(chan struct{}, req.Parallelism)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, t := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(t Target) {
			defer wg.Done()
			defer func() { <-sem }()

			result := o.deployOne(ctx, req, t)
			mu.Lock()
			report.Results = append(report.Results, result)
			mu.Unlock()
		}(t)
	}
	wg.Wait()
}

// deployOne runs the upload/chmod/rename/verify protocol for a single
// host, recording a journal entry on success.
func (o *Orchestrator) deployOne(ctx context.Context, req Request, t Target) HostResult {
	started := time.Now()
	result := HostResult{Host: t.Host, StartedAt: started}

	hostCtx, cancel := context.WithTimeout(ctx, req.PerHostTimeout)
	defer cancel()

	transport, err := o.transport(t.Host)
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		result.EndedAt = time.Now()
		return result
	}
	if err := transport.Connect(hostCtx); err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("connect failed: %v", err)
		result.EndedAt = time.Now()
		return result
	}
	defer transport.Disconnect()

	if err := o.checkDiskSpace(hostCtx, transport, t.RemotePath, req.LocalArtifactPath); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		result.EndedAt = time.Now()
		return result
	}

	tmpPath := t.RemotePath + ".upload." + uuid.NewString()
	if err := transport.UploadFile(hostCtx, req.LocalArtifactPath, tmpPath, 0644); err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("upload failed: %v", err)
		result.EndedAt = time.Now()
		return result
	}

	actual, err := transport.ComputeChecksum(hostCtx, tmpPath)
	if err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("checksum computation failed: %v", err)
		result.EndedAt = time.Now()
		return result
	}
	if actual != req.Checksum {
		transport.ExecuteCommand(hostCtx, "rm -f "+shellQuote(tmpPath))
		verr := errdefs.NewPermanent("uploaded artifact checksum mismatch", nil).
			WithCode(errdefs.CodeVerificationFailed).WithResource(t.Host).
			WithDetail("expected", req.Checksum).WithDetail("actual", actual)
		result.Status = "failed"
		result.Error = verr.Error()
		result.EndedAt = time.Now()
		return result
	}

	if err := transport.SetFilePermissions(hostCtx, tmpPath, 0755); err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("chmod failed: %v", err)
		result.EndedAt = time.Now()
		return result
	}

	prevPath := t.RemotePath + ".prev"
	renameCmd := fmt.Sprintf("mv -f %s %s 2>/dev/null; mv -f %s %s",
		shellQuote(t.RemotePath), shellQuote(prevPath), shellQuote(tmpPath), shellQuote(t.RemotePath))
	if _, stderr, err := transport.ExecuteCommand(hostCtx, renameCmd); err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("atomic rename failed: %v (%s)", err, stderr)
		result.EndedAt = time.Now()
		return result
	}

	if o.store != nil {
		if err := recordJournal(hostCtx, o.store, t.Host, t.Host, prevPath, t.RemotePath); err != nil {
			result.Status = "failed"
			result.Error = fmt.Sprintf("journal write failed: %v", err)
			result.EndedAt = time.Now()
			return result
		}
	}

	result.Status = "verified"
	result.EndedAt = time.Now()
	return result
}

// checkDiskSpace queries available space in the target directory via
// `df -Pk` and compares it to the local artifact's size, failing fast
// with InsufficientSpace before any upload is attempted.
func (o *Orchestrator) checkDiskSpace(ctx context.Context, transport Transport, remotePath, localArtifactPath string) error {
	dir := remotePath[:strings.LastIndex(remotePath, "/")+1]
	if dir == "" {
		dir = "."
	}
	stdout, _, err := transport.ExecuteCommand(ctx, "df -Pk "+shellQuote(dir)+" | tail -1 | awk '{print $4}'")
	if err != nil {
		return nil // best-effort: a df failure doesn't block deployment
	}
	availKB, convErr := strconv.ParseInt(strings.TrimSpace(stdout), 10, 64)
	if convErr != nil {
		return nil
	}

	size, sizeErr := artifactSize(localArtifactPath)
	if sizeErr != nil {
		return nil
	}
	if availKB*1024 < size {
		return errdefs.NewPermanent("insufficient remote disk space", nil).
			WithCode(errdefs.CodeInsufficientSpace).
			WithDetail("available_bytes", availKB*1024).
			WithDetail("required_bytes", size)
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
