package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/metalagman/racefix/internal/config"
	"github.com/metalagman/racefix/internal/db"
	"github.com/rs/zerolog/log"
)

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
	Skipped    int
}

// PruneRuns deletes old run records and their directories. Runs still marked
// running are always kept. With dryRun nothing is removed but Deleted counts
// what would be.
func PruneRuns(ctx context.Context, store *db.Store, runsDir string, policy config.RetentionPolicy, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return PruneResult{}, err
	}

	res := PruneResult{Considered: len(runs)}
	for idx, row := range runs {
		keep := row.Status == db.StatusRunning
		if !keep && policy.KeepLast > 0 && idx < policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 {
			createdAt, parseErr := time.Parse(time.RFC3339, row.CreatedAt)
			if parseErr != nil || createdAt.After(cutoff) {
				keep = true
			}
		}
		if keep {
			res.Kept++
			continue
		}
		if dryRun {
			res.Deleted++
			continue
		}
		if err := removeRun(ctx, store, runsDir, row); err != nil {
			log.Warn().Err(err).Str("run_id", row.RunID).Msg("prune skipped run")
			res.Skipped++
			continue
		}
		res.Deleted++
	}
	return res, nil
}

// Purge removes every finished run and its directory.
func Purge(ctx context.Context, store *db.Store, runsDir string) (int, error) {
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, row := range runs {
		if row.Status == db.StatusRunning {
			continue
		}
		if err := removeRun(ctx, store, runsDir, row); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func removeRun(ctx context.Context, store *db.Store, runsDir string, row db.RunRecord) error {
	targetDir := row.RunDir
	if targetDir == "" {
		targetDir = filepath.Join(runsDir, row.RunID)
	}
	if err := os.RemoveAll(targetDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run dir: %w", err)
	}
	return store.DeleteRun(ctx, row.RunID)
}
