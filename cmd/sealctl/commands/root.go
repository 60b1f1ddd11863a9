// Package commands implements sealctl's cobra command tree: compile,
// deploy, verify, facts, rollback, list-deployments, cleanup, rebuild,
// and watch. Every subcommand talks to the same metadata store and
// artifact cache through the shared app struct built in this file.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sealrunner/sealrunner/pkg/artifact"
	"github.com/sealrunner/sealrunner/pkg/stores"
)

var (
	storePath string
	cacheDir  string
)

// argError marks a failure in the arguments/flags themselves (exit
// code 2), as opposed to a failure while doing the requested work
// (exit code 1).
type argError struct{ err error }

func (a *argError) Error() string { return a.err.Error() }
func (a *argError) Unwrap() error { return a.err }

func newArgError(format string, args ...interface{}) error {
	return &argError{err: fmt.Errorf(format, args...)}
}

// ExitCodeOf maps a command error to sealctl's process exit code: 0 is
// handled by cobra returning nil, 2 is an argument error, everything
// else is a plain operational failure.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ae *argError
	if errors.As(err, &ae) {
		return 2
	}
	return 1
}

// app bundles the store and artifact cache every subcommand needs,
// opened lazily from the persistent --store/--cache-dir flags.
type app struct {
	store    stores.Store
	artifact *artifact.Store
}

func newApp(ctx context.Context) (*app, error) {
	meta, err := stores.NewSQLiteStore(stores.Config{Path: storePath})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %q: %w", storePath, err)
	}
	if err := meta.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := meta.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	artStore, err := artifact.New(meta, cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact cache: %w", err)
	}
	return &app{store: meta, artifact: artStore}, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sealctl",
		Short: "sealctl compiles, deploys, and manages sealed automation binaries",
		Long: `sealctl is the operator-facing CLI around the sealrunner pipeline: it
ingests an execution plan, resolves and validates its modules,
generates and compiles a self-contained binary per deployment target,
and drives SSH-based rollout to the target hosts with rolling,
blue-green, and canary strategies.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&storePath, "store", "sealrunner.db", "path to the sqlite metadata store")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "./sealrunner-cache", "directory holding cached compiled artifacts")

	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newRebuildCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newFactsCommand())
	rootCmd.AddCommand(newRollbackCommand())
	rootCmd.AddCommand(newListDeploymentsCommand())
	rootCmd.AddCommand(newCleanupCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
