// Package reconcile repairs run history left behind by a process that did not finish cleanly.
package reconcile

import (
	"context"
	"fmt"
	"os"

	"github.com/metalagman/racefix/internal/db"
	"github.com/rs/zerolog/log"
)

// Run marks every run still recorded as running as interrupted. It must be
// called while holding the run lock, so no live run can be affected.
// Runs whose directory is gone are noted in the event message.
func Run(ctx context.Context, store *db.Store) (int, error) {
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, r := range runs {
		if r.Status != db.StatusRunning {
			continue
		}
		msg := "run did not finish; marked interrupted during recovery"
		if _, err := os.Stat(r.RunDir); os.IsNotExist(err) {
			msg += " (run dir missing)"
		}
		if err := store.FinishRun(ctx, r.RunID, db.RunResult{
			Status:       db.StatusInterrupted,
			TotalFailing: r.TotalFailing,
			FixedCount:   r.FixedCount,
			StateSuspect: true,
		}); err != nil {
			return fixed, fmt.Errorf("reconcile run %s: %w", r.RunID, err)
		}
		if err := store.AppendEvent(ctx, r.RunID, db.Event{Type: "reconciled_run", Message: msg}); err != nil {
			return fixed, fmt.Errorf("reconcile run %s: %w", r.RunID, err)
		}
		log.Warn().Str("run_id", r.RunID).Msg("previous run was interrupted; project files may hold an unreverted candidate")
		fixed++
	}
	return fixed, nil
}
