// Package deploy implements the DeploymentOrchestrator: strategy-
// driven fan-out of a compiled artifact to a set of hosts, per-host
// upload/verify, and a rollback journal. Per-host outcomes are
// returned in a Report; persisting them is up to the caller.
//
// Execution is organized the same way pkg/runtime organizes task
// waves — bounded-concurrency worker pools processing one batch of
// hosts at a time — except here a "batch" is strategy-defined (all
// hosts for Parallel, fixed-size slices for Rolling, a canary
// percentage then the remainder for Canary) rather than DAG-derived.
package deploy
