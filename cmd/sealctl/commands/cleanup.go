package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCleanupCommand() *cobra.Command {
	var (
		fingerprint string
		olderThan   time.Duration
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Evict cached compiled artifacts",
		Long: `cleanup removes entries from the artifact cache: a single
fingerprint with --fingerprint, everything older than a duration with
--older-than, or the entire cache with --all. Eviction here is always
explicit — the cache never evicts on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fingerprint == "" && olderThan == 0 && !all {
				return newArgError("one of --fingerprint, --older-than, or --all is required")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if fingerprint != "" {
				if err := a.artifact.Delete(cmd.Context(), fingerprint); err != nil {
					return fmt.Errorf("failed to delete artifact %q: %w", fingerprint, err)
				}
				log.Info().Str("fingerprint", fingerprint).Msg("artifact evicted")
				return nil
			}

			records, err := a.artifact.List(cmd.Context(), 10000, 0)
			if err != nil {
				return fmt.Errorf("failed to list artifacts: %w", err)
			}

			cutoff := time.Now().Add(-olderThan)
			evicted := 0
			for _, r := range records {
				if !all && r.CreatedAt.After(cutoff) {
					continue
				}
				if err := a.artifact.Delete(cmd.Context(), r.Fingerprint); err != nil {
					log.Warn().Err(err).Str("fingerprint", r.Fingerprint).Msg("failed to evict artifact")
					continue
				}
				evicted++
			}
			log.Info().Int("evicted", evicted).Int("total", len(records)).Msg("cleanup complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "evict a single artifact by fingerprint")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "evict artifacts created before now minus this duration")
	cmd.Flags().BoolVar(&all, "all", false, "evict every cached artifact")

	return cmd
}
