package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/metalagman/racefix/internal/db"
	"github.com/metalagman/racefix/internal/model"
	"github.com/rs/zerolog/log"
)

// Final run statuses besides model.RunReport.Status.
const (
	StatusNoTestsParsed = "no_tests_parsed"
	StatusCanceled      = "canceled"
	StatusDryRun        = "dry_run"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Recorder persists orchestrator events into run history and writes candidate
// artifacts below the run directory. Write failures are logged and never
// interrupt the run.
type Recorder struct {
	store  *db.Store
	runID  string
	runDir string
	dryRun bool
}

// NewRecorder creates the run record and its directory.
func NewRecorder(ctx context.Context, store *db.Store, rec db.RunRecord) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Join(rec.RunDir, "candidates"), 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	if err := store.CreateRun(ctx, rec); err != nil {
		return nil, err
	}
	return &Recorder{store: store, runID: rec.RunID, runDir: rec.RunDir, dryRun: rec.DryRun}, nil
}

// RunID returns the recorded run id.
func (r *Recorder) RunID() string {
	return r.runID
}

// RunDir returns the run directory.
func (r *Recorder) RunDir() string {
	return r.runDir
}

// Notify implements Observer.
func (r *Recorder) Notify(ctx context.Context, ev Event) {
	ctx = context.WithoutCancel(ctx)
	switch ev.Type {
	case EventRunStarted:
		r.event(ctx, ev.Type, fmt.Sprintf("%d failing tests", ev.Total), nil)
	case EventTestStarted:
		r.event(ctx, ev.Type, ev.Test.Identifier, map[string]any{"source_file": ev.Test.SourceFile})
	case EventAttemptStarted:
		r.event(ctx, ev.Type, fmt.Sprintf("%s attempt %d", ev.Test.Identifier, ev.Attempt), nil)
	case EventCandidatesGenerated:
		for _, c := range ev.Candidates {
			r.writeCandidate(*ev.Test, ev.Attempt, c)
		}
		r.event(ctx, ev.Type, fmt.Sprintf("%s attempt %d: %d candidates", ev.Test.Identifier, ev.Attempt, len(ev.Candidates)), nil)
	case EventCandidateVerdict:
		data := map[string]any{"attempt": ev.Attempt, "verdict": ev.Verdict}
		if ev.Candidate != nil {
			data["producer"] = ev.Candidate.ProducerID
			data["target"] = ev.Candidate.TargetFile
			data["rationale"] = ev.Candidate.Rationale
		}
		r.event(ctx, ev.Type, fmt.Sprintf("%s: %s", ev.Test.Identifier, ev.Verdict), data)
	case EventRevertFailed:
		r.event(ctx, ev.Type, "revert failed: "+ev.Path, map[string]any{"path": ev.Path})
	case EventDryRun:
		r.event(ctx, ev.Type, fmt.Sprintf("%s: %d candidates not applied", ev.Test.Identifier, len(ev.Candidates)), nil)
	case EventTestFinished:
		r.recordTest(ctx, *ev.Outcome)
	case EventRunFinished:
		r.writeJSON(filepath.Join(r.runDir, "report.json"), ev.Report)
	}
}

// Finish stores the final status of the run. runErr is the error returned by
// Orchestrator.Run, if any.
func (r *Recorder) Finish(ctx context.Context, report model.RunReport, runErr error) error {
	return r.store.FinishRun(context.WithoutCancel(ctx), r.runID, db.RunResult{
		Status:       finalStatus(report, runErr, r.dryRun),
		TotalFailing: report.TotalFailing,
		FixedCount:   report.FixedCount,
		StateSuspect: report.StateSuspect,
	})
}

func finalStatus(report model.RunReport, runErr error, dryRun bool) string {
	switch {
	case errors.Is(runErr, ErrNoTestsParsed):
		return StatusNoTestsParsed
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return StatusCanceled
	case runErr != nil:
		return "error"
	case dryRun && report.TotalFailing > 0:
		return StatusDryRun
	default:
		return report.Status()
	}
}

func (r *Recorder) recordTest(ctx context.Context, out model.TestOutcome) {
	rec := db.TestRecord{
		RunID:      r.runID,
		Identifier: out.Test.Identifier,
		SourceFile: out.Test.SourceFile,
		State:      string(out.State),
		Reason:     string(out.Reason),
		Attempts:   out.Attempts,
	}
	if out.FixedBy != nil {
		producer := out.FixedBy.ProducerID
		rec.FixedByProducer = &producer
		rec.FixedTarget = out.FixedBy.TargetFile
	}
	ev := &db.Event{Type: string(EventTestFinished), Message: fmt.Sprintf("%s: %s (%s)", out.Test.Identifier, out.State, out.Reason)}
	if err := r.store.RecordTest(ctx, rec, ev); err != nil {
		log.Warn().Err(err).Str("run_id", r.runID).Str("test", out.Test.Identifier).Msg("record test outcome")
	}
}

func (r *Recorder) event(ctx context.Context, typ EventType, msg string, data map[string]any) {
	ev := db.Event{Type: string(typ), Message: msg}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err == nil {
			ev.DataJSON = string(raw)
		}
	}
	if err := r.store.AppendEvent(ctx, r.runID, ev); err != nil {
		log.Warn().Err(err).Str("run_id", r.runID).Str("type", string(typ)).Msg("record event")
	}
}

// CandidatePath is where a generated candidate is stored for later inspection.
func (r *Recorder) CandidatePath(testID string, attempt, producer int) string {
	return filepath.Join(r.runDir, "candidates", unsafeName.ReplaceAllString(testID, "_"),
		fmt.Sprintf("attempt-%d", attempt), fmt.Sprintf("producer-%d.json", producer))
}

func (r *Recorder) writeCandidate(test model.FailingTest, attempt int, c model.Candidate) {
	r.writeJSON(r.CandidatePath(test.Identifier, attempt, c.ProducerID), c)
}

func (r *Recorder) writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("encode artifact")
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("create artifact dir")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("write artifact")
	}
}
