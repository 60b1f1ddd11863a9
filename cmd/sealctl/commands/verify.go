package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sealrunner/sealrunner/pkg/deploy"
)

func newVerifyCommand() *cobra.Command {
	var (
		inventoryPath string
		remotePath    string
		checksum      string
		sshUser       string
		sshKey        string
		sshPort       int
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the checksum of an already-deployed binary across an inventory",
		Long: `verify connects to every host in an inventory and compares the
checksum of the binary already installed at remote-path against the
expected value, without performing any upload or rename.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inventoryPath == "" || remotePath == "" || checksum == "" {
				return newArgError("--inventory, --remote-path, and --checksum are all required")
			}
			targets, err := parseInventory(inventoryPath, remotePath)
			if err != nil {
				return newArgError("%w", err)
			}

			factory := sshTransportFactory(sshUser, sshKey, sshPort)
			mismatches := 0
			for _, t := range targets {
				if err := verifyOne(cmd.Context(), factory, t, checksum); err != nil {
					mismatches++
					log.Error().Str("host", t.Host).Err(err).Msg("verification failed")
					continue
				}
				log.Info().Str("host", t.Host).Msg("checksum verified")
			}

			if mismatches > 0 {
				return fmt.Errorf("%d of %d hosts failed verification", mismatches, len(targets))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inventoryPath, "inventory", "", "path to the inventory file")
	cmd.Flags().StringVar(&remotePath, "remote-path", "", "remote path of the binary to verify")
	cmd.Flags().StringVar(&checksum, "checksum", "", "expected SHA-256 checksum in hex")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "root", "SSH username")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "path to an SSH private key (default: local SSH agent)")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")

	return cmd
}

func verifyOne(ctx context.Context, factory deploy.TransportFactory, t deploy.Target, expected string) error {
	transport, err := factory(t.Host)
	if err != nil {
		return err
	}
	if err := transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer transport.Disconnect()

	actual, err := transport.ComputeChecksum(ctx, t.RemotePath)
	if err != nil {
		return fmt.Errorf("checksum computation failed: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}
