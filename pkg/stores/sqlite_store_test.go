package stores

import (
	"context"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	return store
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	// Re-running migrate must be a no-op, not an error.
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("re-running migrations should be idempotent: %v", err)
	}
}

func TestRun_CreateGetUpdateList(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	run := &Run{
		ID: "run-1", PlanPath: "plan.json", Status: RunStatusPending,
		StartedAt: time.Now(), Metadata: "{}", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != RunStatusPending {
		t.Errorf("expected pending status, got %s", got.Status)
	}

	if err := store.UpdateRunStatus(ctx, "run-1", RunStatusCompleted, nil); err != nil {
		t.Fatalf("failed to update run status: %v", err)
	}
	got, _ = store.GetRun(ctx, "run-1")
	if got.Status != RunStatusCompleted {
		t.Errorf("expected completed status, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-1"); err == nil {
		t.Error("expected error getting deleted run")
	}
}

func TestDeploymentTarget_Lifecycle(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	run := &Run{ID: "run-1", PlanPath: "p.json", Status: RunStatusRunning, StartedAt: time.Now(), Metadata: "{}", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	target := &DeploymentTargetRecord{
		ID: "target-1", RunID: "run-1", Host: "host-a", RemotePath: "/opt/runner",
		Fingerprint: "fp-123", Transport: "ssh", Status: TargetStatusPending,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.CreateDeploymentTarget(ctx, target); err != nil {
		t.Fatalf("failed to create deployment target: %v", err)
	}

	if err := store.UpdateDeploymentTargetStatus(ctx, "target-1", TargetStatusDeployed, nil); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	got, err := store.GetDeploymentTarget(ctx, "target-1")
	if err != nil {
		t.Fatalf("failed to get deployment target: %v", err)
	}
	if got.Status != TargetStatusDeployed {
		t.Errorf("expected deployed status, got %s", got.Status)
	}
	if got.DeployedAt == nil {
		t.Error("expected deployed_at to be set")
	}

	targets, err := store.ListDeploymentTargetsByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to list targets: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}

	if err := store.IncrementDeploymentTargetRetries(ctx, "target-1"); err != nil {
		t.Fatalf("failed to increment retries: %v", err)
	}
	got, _ = store.GetDeploymentTarget(ctx, "target-1")
	if got.Retries != 1 {
		t.Errorf("expected 1 retry, got %d", got.Retries)
	}
}

func TestArtifact_UpsertGetList(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	artifact := &ArtifactRecord{
		Fingerprint: "fp-abc", TargetTriple: "x86_64-linux", Checksum: "sha256:deadbeef",
		BlobPath: "/var/cache/sealrunner/fp-abc", SizeBytes: 1024, Provenance: "FreshCompilation",
		BuildDuration: 2 * time.Second, CreatedAt: time.Now(),
	}
	if err := store.UpsertArtifact(ctx, artifact); err != nil {
		t.Fatalf("failed to upsert artifact: %v", err)
	}

	got, err := store.GetArtifact(ctx, "fp-abc")
	if err != nil {
		t.Fatalf("failed to get artifact: %v", err)
	}
	if got.SizeBytes != 1024 {
		t.Errorf("expected size 1024, got %d", got.SizeBytes)
	}
	if got.BuildDuration != 2*time.Second {
		t.Errorf("expected 2s build duration, got %s", got.BuildDuration)
	}

	artifact.SizeBytes = 2048
	if err := store.UpsertArtifact(ctx, artifact); err != nil {
		t.Fatalf("failed to update artifact: %v", err)
	}
	got, _ = store.GetArtifact(ctx, "fp-abc")
	if got.SizeBytes != 2048 {
		t.Errorf("expected updated size 2048, got %d", got.SizeBytes)
	}

	artifacts, err := store.ListArtifacts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list artifacts: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}

	if err := store.DeleteArtifact(ctx, "fp-abc"); err != nil {
		t.Fatalf("failed to delete artifact: %v", err)
	}
}

func TestFact_UpsertExpiry(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	fact := &Fact{
		ID: "fact-1", TargetID: "host-a", Namespace: "os.basic", Key: "family", Value: `"linux"`,
		TTL: 60, ExpiresAt: &past, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.UpsertFact(ctx, fact); err != nil {
		t.Fatalf("failed to upsert fact: %v", err)
	}

	if _, err := store.GetFact(ctx, "host-a", "os.basic", "family"); err == nil {
		t.Error("expected expired fact to be unreadable")
	}

	deleted, err := store.DeleteExpiredFacts(ctx)
	if err != nil {
		t.Fatalf("failed to delete expired facts: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 expired fact deleted, got %d", deleted)
	}
}

func TestAuditEntry_CreateList(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	entry := &AuditEntry{Action: "deploy.completed", Actor: "sealctl", Timestamp: time.Now()}
	if err := store.CreateAuditEntry(ctx, entry); err != nil {
		t.Fatalf("failed to create audit entry: %v", err)
	}

	entries, err := store.ListAuditEntries(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
}
