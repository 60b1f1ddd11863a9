package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sealrunner/sealrunner/pkg/deploy"
)

func newRollbackCommand() *cobra.Command {
	var (
		host    string
		sshUser string
		sshKey  string
		sshPort int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the previous binary on a host using the deployment journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				return newArgError("--host is required")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			orch := deploy.New(a.store, sshTransportFactory(sshUser, sshKey, sshPort))
			result, err := orch.Rollback(cmd.Context(), host, timeout)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}

			log.Info().Str("host", host).Str("status", result.Status).Msg("rollback complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to roll back")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "root", "SSH username")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "path to an SSH private key (default: local SSH agent)")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-host timeout for the rollback command")

	return cmd
}
