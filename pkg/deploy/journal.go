package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
	"github.com/sealrunner/sealrunner/pkg/stores"
)

// journalEntry is the Details payload of an AuditEntry recording a
// successful deploy, sufficient to roll the host back without
// replaying the deployment.
type journalEntry struct {
	Host         string `json:"host"`
	PreviousPath string `json:"previous_path"`
	DeployedPath string `json:"deployed_path"`
}

func recordJournal(ctx context.Context, store stores.Store, targetID, host, previousPath, deployedPath string) error {
	details, err := json.Marshal(journalEntry{Host: host, PreviousPath: previousPath, DeployedPath: deployedPath})
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	detailsStr := string(details)
	entry := &stores.AuditEntry{
		Action:    "deploy.completed",
		Actor:     "deploy-orchestrator",
		TargetID:  &targetID,
		Details:   &detailsStr,
		Timestamp: time.Now().UTC(),
	}
	return store.CreateAuditEntry(ctx, entry)
}

// lastJournalEntry finds the most recent deploy.completed audit entry
// for targetID, which names the previous binary path to roll back to.
func lastJournalEntry(ctx context.Context, store stores.Store, targetID string) (*journalEntry, error) {
	action := "deploy.completed"
	entries, err := store.ListAuditEntries(ctx, &action, nil, 256, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	for _, e := range entries {
		if e.TargetID == nil || *e.TargetID != targetID || e.Details == nil {
			continue
		}
		var je journalEntry
		if err := json.Unmarshal([]byte(*e.Details), &je); err != nil {
			continue
		}
		return &je, nil
	}
	return nil, errdefs.NewPermanent("no journal entry for target", nil).
		WithCode(errdefs.CodeRollbackFailed).WithResource(targetID)
}
