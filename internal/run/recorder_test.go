package run

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	internaldb "github.com/metalagman/racefix/internal/db"
	"github.com/metalagman/racefix/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_PersistsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	p := newProject(t, map[string]string{"tests/test_a.py::test_x": "a.py", "t2": "b.py"})
	runDir := filepath.Join(t.TempDir(), "runs", "run-1")

	rec, err := NewRecorder(ctx, store, internaldb.RunRecord{
		RunID: "run-1", ProjectRoot: p.root, Framework: "pytest", Agents: 2, MaxAttempts: 1, RunDir: runDir,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.RunID())

	src := &fakeSource{gen: func(test model.FailingTest, _ int) []model.Candidate {
		if test.Identifier == "t2" {
			return []model.Candidate{candidate(1, test.SourceFile, "nope")}
		}
		return []model.Candidate{candidate(0, test.SourceFile, test.Identifier+" fixed\n")}
	}}
	report, runErr := p.orchestrator(t, src, rec, Options{MaxAttempts: 1}).Run(ctx)
	require.NoError(t, runErr)
	require.NoError(t, rec.Finish(ctx, report, runErr))

	run, ok, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "partial", run.Status)
	assert.Equal(t, 2, run.TotalFailing)
	assert.Equal(t, 1, run.FixedCount)

	tests, err := store.Tests(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, tests, 2)
	assert.Equal(t, "t2", tests[0].Identifier)
	assert.Equal(t, "exhausted", tests[0].State)
	assert.Equal(t, "tests/test_a.py::test_x", tests[1].Identifier)
	assert.Equal(t, "fixed", tests[1].State)
	require.NotNil(t, tests[1].FixedByProducer)

	events, err := store.Events(ctx, "run-1")
	require.NoError(t, err)
	var verdicts []string
	for _, ev := range events {
		if ev.Type == string(EventCandidateVerdict) {
			var data map[string]any
			require.NoError(t, json.Unmarshal([]byte(ev.DataJSON), &data))
			verdicts = append(verdicts, data["verdict"].(string))
		}
	}
	assert.Equal(t, []string{"rejected", "accepted"}, verdicts)
	assert.Equal(t, "run_finished", events[len(events)-1].Type)

	artifact := rec.CandidatePath("tests/test_a.py::test_x", 0, 0)
	assert.Equal(t, filepath.Join(runDir, "candidates", "tests_test_a.py_test_x", "attempt-0", "producer-0.json"), artifact)
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	var stored model.Candidate
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "tests/test_a.py::test_x fixed\n", stored.Content)
	assert.FileExists(t, filepath.Join(runDir, "report.json"))
}

func TestFinalStatus(t *testing.T) {
	t.Parallel()

	partial := model.RunReport{TotalFailing: 2, FixedCount: 1}
	assert.Equal(t, StatusNoTestsParsed, finalStatus(model.RunReport{}, ErrNoTestsParsed, false))
	assert.Equal(t, StatusCanceled, finalStatus(partial, context.Canceled, false))
	assert.Equal(t, StatusDryRun, finalStatus(model.RunReport{TotalFailing: 1}, nil, true))
	assert.Equal(t, "clean", finalStatus(model.RunReport{}, nil, true))
	assert.Equal(t, "partial", finalStatus(partial, nil, false))
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, err := NewRunID()
	require.NoError(t, err)
	b, err := NewRunID()
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}-\d{6}-[0-9a-f]{6}$`, a)
	assert.NotEqual(t, a, b)
}
