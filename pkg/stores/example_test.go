package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sealrunner/sealrunner/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateRun demonstrates creating a new run record.
func ExampleSQLiteStore_CreateRun() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.Run{
		ID:        "run-001",
		PlanPath:  "/plans/deploy-web.json",
		Status:    stores.RunStatusPending,
		StartedAt: time.Now(),
		Metadata:  `{"environment":"production"}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := store.CreateRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	retrieved, err := store.GetRun(ctx, "run-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Run ID: %s, Status: %s\n", retrieved.ID, retrieved.Status)
	// Output: Run ID: run-001, Status: pending
}

// ExampleSQLiteStore_CreateDeploymentTarget demonstrates tracking a
// single host's deployment within a run.
func ExampleSQLiteStore_CreateDeploymentTarget() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.Run{
		ID:        "run-002",
		PlanPath:  "/plans/test.json",
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now(),
		Metadata:  `{}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_ = store.CreateRun(ctx, run)

	target := &stores.DeploymentTargetRecord{
		ID:          "target-001",
		RunID:       "run-002",
		Host:        "web-01.internal",
		RemotePath:  "/opt/sealrunner/runner",
		Fingerprint: "abc123def456",
		Transport:   "ssh",
		Status:      stores.TargetStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := store.CreateDeploymentTarget(ctx, target); err != nil {
		log.Fatal(err)
	}

	retrieved, err := store.GetDeploymentTarget(ctx, "target-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Target: %s, Fingerprint: %s\n", retrieved.Host, retrieved.Fingerprint)
	// Output: Target: web-01.internal, Fingerprint: abc123def456
}

// ExampleSQLiteStore_AppendEvent demonstrates logging events.
func ExampleSQLiteStore_AppendEvent() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.Run{
		ID:        "run-003",
		PlanPath:  "/plans/test.json",
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now(),
		Metadata:  `{}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_ = store.CreateRun(ctx, run)

	details := `{"target":"production"}`
	event := &stores.Event{
		RunID:     &run.ID,
		Level:     stores.EventLevelInfo,
		Message:   "Starting deployment",
		Details:   &details,
		Timestamp: time.Now(),
	}

	if err := store.AppendEvent(ctx, event); err != nil {
		log.Fatal(err)
	}

	events, err := store.GetEvents(ctx, &run.ID, nil, nil, 10, 0)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Event count: %d, Message: %s\n", len(events), events[0].Message)
	// Output: Event count: 1, Message: Starting deployment
}

// ExampleSQLiteStore_UpsertFact demonstrates storing facts with TTL.
func ExampleSQLiteStore_UpsertFact() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	fact := &stores.Fact{
		ID:        "fact-001",
		TargetID:  "host-001",
		Namespace: "os.basic",
		Key:       "os_family",
		Value:     `"debian"`,
		TTL:       0, // never expires
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := store.UpsertFact(ctx, fact); err != nil {
		log.Fatal(err)
	}

	retrieved, err := store.GetFact(ctx, "host-001", "os.basic", "os_family")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Fact: %s/%s/%s = %s\n",
		retrieved.TargetID, retrieved.Namespace, retrieved.Key, retrieved.Value)
	// Output: Fact: host-001/os.basic/os_family = "debian"
}

// ExampleSQLiteStore_BeginTx demonstrates using transactions.
func ExampleSQLiteStore_BeginTx() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		log.Fatal(err)
	}

	query := `
		INSERT INTO runs (id, plan_path, status, started_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err = tx.ExecContext(ctx, query, "run-tx-001", "/plans/test.json",
		"pending", now, "{}", now, now)

	if err != nil {
		_ = store.RollbackTx(tx)
		log.Fatal(err)
	}

	if err := store.CommitTx(tx); err != nil {
		log.Fatal(err)
	}

	run, err := store.GetRun(ctx, "run-tx-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Transaction committed: Run %s created\n", run.ID)
	// Output: Transaction committed: Run run-tx-001 created
}
