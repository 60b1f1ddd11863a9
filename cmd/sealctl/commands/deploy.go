package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sealrunner/sealrunner/pkg/deploy"
)

func newDeployCommand() *cobra.Command {
	var (
		runID                  string
		artifactPath           string
		inventoryPath          string
		remotePath             string
		strategyFlag           string
		rollingBatchSize       int
		canaryPercent          int
		canaryFailureThreshold int
		parallelism            int
		perHostTimeout         time.Duration
		version                string
		sshUser                string
		sshKey                 string
		sshPort                int
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a compiled binary to an inventory of hosts",
		Long: `deploy uploads a compiled binary to every host in an inventory file
over SSH, using the given rollout strategy (parallel, rolling,
blue_green, or canary), and verifies each host's checksum after
upload before reporting success.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifactPath == "" {
				return newArgError("--artifact is required")
			}
			if inventoryPath == "" {
				return newArgError("--inventory is required")
			}
			if remotePath == "" {
				return newArgError("--remote-path is required")
			}

			targets, err := parseInventory(inventoryPath, remotePath)
			if err != nil {
				return newArgError("%w", err)
			}

			data, err := os.ReadFile(artifactPath)
			if err != nil {
				return newArgError("failed to read artifact %q: %w", artifactPath, err)
			}
			sum := sha256.Sum256(data)
			checksum := hex.EncodeToString(sum[:])

			strategy, err := parseStrategy(strategyFlag)
			if err != nil {
				return newArgError("%w", err)
			}

			if runID == "" {
				runID = uuid.NewString()
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			orch := deploy.New(a.store, sshTransportFactory(sshUser, sshKey, sshPort))
			req := deploy.Request{
				RunID:                  runID,
				Checksum:               checksum,
				Version:                version,
				LocalArtifactPath:      artifactPath,
				Targets:                targets,
				Strategy:               strategy,
				RollingBatchSize:       rollingBatchSize,
				CanaryPercent:          canaryPercent,
				CanaryFailureThreshold: canaryFailureThreshold,
				PerHostTimeout:         perHostTimeout,
				Parallelism:            parallelism,
			}

			report, err := orch.Deploy(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("deployment failed: %w", err)
			}

			failures := persistDeploymentResults(cmd.Context(), a, runID, checksum, version, targets, report)

			for _, r := range report.Results {
				log.Info().Str("host", r.Host).Str("status", r.Status).Str("error", r.Error).Msg("deployment result")
			}
			if report.Aborted {
				log.Warn().Str("reason", report.AbortReason).Msg("deployment aborted")
			}

			if failures > 0 || report.Aborted {
				return fmt.Errorf("deployment completed with %d failed host(s), aborted=%v", failures, report.Aborted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier to record results under (default: generated)")
	cmd.Flags().StringVar(&artifactPath, "artifact", "", "path to the compiled binary to deploy")
	cmd.Flags().StringVar(&inventoryPath, "inventory", "", "path to the inventory file (one host[,remote_path] per line)")
	cmd.Flags().StringVar(&remotePath, "remote-path", "", "remote path to install the binary at (used when an inventory line omits one)")
	cmd.Flags().StringVar(&strategyFlag, "strategy", "parallel", "rollout strategy: parallel, rolling, blue_green, canary")
	cmd.Flags().IntVar(&rollingBatchSize, "rolling-batch-size", 1, "hosts per batch for the rolling strategy")
	cmd.Flags().IntVar(&canaryPercent, "canary-percent", 10, "percentage of hosts in the canary wave")
	cmd.Flags().IntVar(&canaryFailureThreshold, "canary-failure-threshold", 0, "canary wave failures tolerated before aborting the remainder")
	cmd.Flags().IntVar(&parallelism, "parallelism", 8, "maximum concurrent host deployments")
	cmd.Flags().DurationVar(&perHostTimeout, "per-host-timeout", 2*time.Minute, "per-host deployment timeout")
	cmd.Flags().StringVar(&version, "version", "", "version label recorded against each deployment target")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "root", "SSH username")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "path to an SSH private key (default: local SSH agent)")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")

	return cmd
}

func parseStrategy(s string) (deploy.Strategy, error) {
	switch s {
	case "", "parallel":
		return deploy.StrategyParallel, nil
	case "rolling":
		return deploy.StrategyRolling, nil
	case "blue_green", "bluegreen", "blue-green":
		return deploy.StrategyBlueGreen, nil
	case "canary":
		return deploy.StrategyCanary, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}
