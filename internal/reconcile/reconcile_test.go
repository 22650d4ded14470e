package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	dbpkg "github.com/metalagman/racefix/internal/db"
)

func TestRunMarksStaleRunsInterrupted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rootDir := t.TempDir()
	racefixDir := filepath.Join(rootDir, ".racefix")
	liveDir := filepath.Join(racefixDir, "runs", "run-1")
	if err := os.MkdirAll(liveDir, 0o755); err != nil {
		t.Fatalf("create run dir: %v", err)
	}

	database, err := dbpkg.Open(filepath.Join(rootDir, "racefix.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	store := dbpkg.NewStore(database)

	for _, rec := range []dbpkg.RunRecord{
		{RunID: "run-1", ProjectRoot: rootDir, Framework: "go", Agents: 1, MaxAttempts: 1, RunDir: liveDir},
		{RunID: "run-2", ProjectRoot: rootDir, Framework: "go", Agents: 1, MaxAttempts: 1, RunDir: filepath.Join(racefixDir, "runs", "gone")},
		{RunID: "run-3", ProjectRoot: rootDir, Framework: "go", Agents: 1, MaxAttempts: 1, RunDir: liveDir},
	} {
		if err := store.CreateRun(ctx, rec); err != nil {
			t.Fatalf("create run: %v", err)
		}
	}
	if err := store.FinishRun(ctx, "run-3", dbpkg.RunResult{Status: "all_fixed", TotalFailing: 1, FixedCount: 1}); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	n, err := Run(ctx, store)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 2 {
		t.Fatalf("reconciled = %d, want 2", n)
	}

	for id, want := range map[string]string{"run-1": "interrupted", "run-2": "interrupted", "run-3": "all_fixed"} {
		status, err := store.GetRunStatus(ctx, id)
		if err != nil {
			t.Fatalf("status %s: %v", id, err)
		}
		if status != want {
			t.Fatalf("status %s = %q, want %q", id, status, want)
		}
	}

	events, err := store.Events(ctx, "run-2")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != "reconciled_run" {
		t.Fatalf("last event type = %q, want reconciled_run", last.Type)
	}
	if want := "run did not finish; marked interrupted during recovery (run dir missing)"; last.Message != want {
		t.Fatalf("event message = %q, want %q", last.Message, want)
	}

	again, err := Run(ctx, store)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if again != 0 {
		t.Fatalf("second reconcile touched %d runs, want 0", again)
	}
}
