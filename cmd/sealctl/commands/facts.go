package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sealrunner/sealrunner/pkg/runtime"
)

func newFactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Preview the host facts a sealed binary would collect locally",
		Long: `facts runs the same host-fact collection a sealed binary performs at
startup (hostname, OS family, distro, kernel, network interfaces) and
prints the result as JSON, so a plan's required_facts can be checked
against this host before compiling a deployment for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			facts, err := runtime.CollectFacts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to collect facts: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(facts)
		},
	}
	return cmd
}
