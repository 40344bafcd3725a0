package tasks

import (
	"context"
	"fmt"
	"time"
)

// dedupRetention is how long inbound dedup records are kept. Provider
// redeliveries arrive within minutes; a week is a comfortable margin.
const dedupRetention = 7 * 24 * time.Hour

func newPruneDedupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "prune_dedup")

	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-dedupRetention)
		removed, err := deps.Store.PruneDedup(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Dedup prune failed", "error", err)
			return fmt.Errorf("dedup prune failed: %w", err)
		}
		log.InfoContext(ctx, "Pruned inbound dedup records", "removed", removed, "cutoff", cutoff)
		return nil
	}
}
