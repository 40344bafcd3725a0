package tasks

import (
	"context"
	"fmt"
	"time"
)

// newPurgeExpiredPendingTask creates the task that deletes expired pending
// interactions wholesale. Correctness never depends on it: the per-message
// expiry check is the source of truth; this keeps the table small.
func newPurgeExpiredPendingTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "purge_expired_pending")

	return func(ctx context.Context) error {
		removed, err := deps.Store.DeleteExpiredPending(ctx, time.Now())
		if err != nil {
			log.ErrorContext(ctx, "Pending purge failed", "error", err)
			return fmt.Errorf("pending purge failed: %w", err)
		}
		if removed > 0 {
			log.InfoContext(ctx, "Purged expired pending interactions", "removed", removed)
		}
		return nil
	}
}
