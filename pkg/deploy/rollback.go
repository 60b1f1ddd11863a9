package deploy

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Rollback restores the previous binary on host by consulting the
// deployment journal. It fails with RollbackFailed if no journal
// entry exists for the host (surfaced via lastJournalEntry's error).
func (o *Orchestrator) Rollback(ctx context.Context, host string, perHostTimeout time.Duration) (HostResult, error) {
	if perHostTimeout <= 0 {
		perHostTimeout = defaultPerHostTimeout
	}
	result := HostResult{Host: host, StartedAt: time.Now()}

	entry, err := lastJournalEntry(ctx, o.store, host)
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		result.EndedAt = time.Now()
		return result, err
	}

	transport, err := o.transport(host)
	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		result.EndedAt = time.Now()
		return result, err
	}

	hostCtx, cancel := context.WithTimeout(ctx, perHostTimeout)
	defer cancel()

	if err := transport.Connect(hostCtx); err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("connect failed: %v", err)
		result.EndedAt = time.Now()
		return result, err
	}
	defer transport.Disconnect()

	cmd := fmt.Sprintf("mv -f %s %s", shellQuote(entry.PreviousPath), shellQuote(entry.DeployedPath))
	if _, stderr, err := transport.ExecuteCommand(hostCtx, cmd); err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("rollback rename failed: %v (%s)", err, stderr)
		result.EndedAt = time.Now()
		return result, err
	}

	if err := recordJournal(hostCtx, o.store, host, host, entry.DeployedPath, entry.PreviousPath); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		result.EndedAt = time.Now()
		return result, err
	}

	result.Status = "rolled_back"
	result.EndedAt = time.Now()
	return result, nil
}

func artifactSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
