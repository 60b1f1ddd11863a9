package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newListDeploymentsCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "list-deployments",
		Short: "List recorded deployment targets for a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return newArgError("--run-id is required")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.store.ListDeploymentTargetsByRun(cmd.Context(), runID)
			if err != nil {
				return fmt.Errorf("failed to list deployment targets: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintf(os.Stderr, "no deployment targets recorded for run %q\n", runID)
				return nil
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier to list deployment targets for")
	return cmd
}
