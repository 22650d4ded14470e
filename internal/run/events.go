package run

import (
	"context"

	"github.com/metalagman/racefix/internal/model"
)

// EventType names a point in the orchestrator lifecycle.
type EventType string

const (
	EventRunStarted          EventType = "run_started"
	EventTestStarted         EventType = "test_started"
	EventAttemptStarted      EventType = "attempt_started"
	EventCandidatesGenerated EventType = "candidates_generated"
	EventCandidateVerdict    EventType = "candidate_verdict"
	EventRevertFailed        EventType = "revert_failed"
	EventDryRun              EventType = "dry_run"
	EventTestFinished        EventType = "test_finished"
	EventRunFinished         EventType = "run_finished"
)

// Event carries the data for one lifecycle notification. Only the fields
// relevant to Type are set.
type Event struct {
	Type       EventType
	Test       *model.FailingTest
	Attempt    int
	Candidate  *model.Candidate
	Candidates []model.Candidate
	Verdict    model.Verdict
	Path       string
	Outcome    *model.TestOutcome
	Report     *model.RunReport
	Total      int
}

// Observer receives orchestrator events. Implementations must not block for long;
// the verification loop waits for Notify to return.
type Observer interface {
	Notify(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Notify calls f.
func (f ObserverFunc) Notify(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers fans an event out to every non-nil observer in order.
type Observers []Observer

// Notify implements Observer.
func (o Observers) Notify(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Notify(ctx, ev)
		}
	}
}
