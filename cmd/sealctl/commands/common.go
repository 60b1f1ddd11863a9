package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sealrunner/sealrunner/pkg/deploy"
	"github.com/sealrunner/sealrunner/pkg/stores"
	"github.com/sealrunner/sealrunner/pkg/transports/ssh"
	"github.com/sealrunner/sealrunner/pkg/types"
)

// readDocument reads a plan (or any other input document) from path,
// or from stdin when path is "-".
func readDocument(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// parseTargetTriple splits an "arch-os" override like "arm64-linux"
// into its components.
func parseTargetTriple(triple string) (arch, osName string, err error) {
	parts := strings.SplitN(triple, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid target triple %q, expected <arch>-<os>", triple)
	}
	return parts[0], parts[1], nil
}

// moduleSpecsFor builds the []types.ModuleSpec a deployment's module
// names resolve to. A manifest entry overrides the default (each name
// resolves to the in-tree builtin module of the same name), letting an
// operator point a name at a git/http/file/registry source instead.
func moduleSpecsFor(names []string, manifest map[string]types.ModuleSpec) []types.ModuleSpec {
	specs := make([]types.ModuleSpec, 0, len(names))
	for _, name := range names {
		if spec, ok := manifest[name]; ok {
			specs = append(specs, spec)
			continue
		}
		specs = append(specs, types.ModuleSpec{
			Name:   name,
			Source: types.ModuleSource{Kind: types.ModuleSourceBuiltin, Location: name},
			Requirements: types.ModuleRequirements{
				SecurityTier: types.TierTrusted,
			},
		})
	}
	return specs
}

// parseInventory reads the target hosts listed in an inventory file:
// "host" or "host,remote_path" per line, blank lines and lines
// starting with # ignored.
func parseInventory(path, defaultRemotePath string) ([]deploy.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory %q: %w", path, err)
	}
	defer f.Close()

	var targets []deploy.Target
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		remotePath := defaultRemotePath
		if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
			remotePath = strings.TrimSpace(parts[1])
		}
		targets = append(targets, deploy.Target{Host: strings.TrimSpace(parts[0]), RemotePath: remotePath})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inventory %q: %w", path, err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("inventory %q named no hosts", path)
	}
	return targets, nil
}

// persistDeploymentResults records each host outcome from a deploy
// Report as a DeploymentTargetRecord so list-deployments can report on
// the run later, and returns the number of hosts that did not verify.
func persistDeploymentResults(ctx context.Context, a *app, runID, fingerprint, version string, targets []deploy.Target, report *deploy.Report) int {
	remotePaths := make(map[string]string, len(targets))
	for _, t := range targets {
		remotePaths[t.Host] = t.RemotePath
	}

	failures := 0
	for _, r := range report.Results {
		status := stores.TargetStatusDeployed
		var errMsg *string
		switch r.Status {
		case "verified":
			status = stores.TargetStatusVerified
		case "skipped":
			status = stores.TargetStatusPending
		default:
			status = stores.TargetStatusFailed
			failures++
			msg := r.Error
			errMsg = &msg
		}

		record := &stores.DeploymentTargetRecord{
			ID:          uuid.NewString(),
			RunID:       runID,
			Host:        r.Host,
			RemotePath:  remotePaths[r.Host],
			Fingerprint: fingerprint,
			Transport:   "ssh",
			Status:      status,
			Version:     version,
			Error:       errMsg,
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		if !r.StartedAt.IsZero() {
			record.StartedAt = &r.StartedAt
		}
		if !r.EndedAt.IsZero() {
			record.DeployedAt = &r.EndedAt
		}
		if err := a.store.CreateDeploymentTarget(ctx, record); err != nil {
			log.Warn().Err(err).Str("host", r.Host).Msg("failed to persist deployment target record")
		}
	}
	return failures
}

// sshTransportFactory returns a deploy.TransportFactory that opens a
// real SSH connection per host, authenticating with a private key
// when keyPath is set or else falling back to the local SSH agent.
func sshTransportFactory(user, keyPath string, port int) deploy.TransportFactory {
	return func(host string) (deploy.Transport, error) {
		cfg := ssh.DefaultConfig(host, user)
		if port != 0 {
			cfg.Port = port
		}
		if keyPath != "" {
			cfg.AuthMethod = ssh.AuthMethodKey
			cfg.PrivateKeyPath = keyPath
		} else {
			cfg.AuthMethod = ssh.AuthMethodAgent
		}
		client, err := ssh.NewSSHClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build ssh client for %s: %w", host, err)
		}
		// *ssh.SSHClient's method set is a superset of deploy.Transport's
		// six methods, so it satisfies the interface directly.
		return client, nil
	}
}
