// Package run drives failing tests through generate, apply, verify and revert cycles.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/racefix/internal/model"
	"github.com/metalagman/racefix/internal/oracle"
	"github.com/rs/zerolog/log"
)

// ErrNoTestsParsed is returned when the suite failed but no failing test ids could be extracted.
var ErrNoTestsParsed = errors.New("test suite failed but no failing tests were parsed")

// Oracle runs the project's test suite.
type Oracle interface {
	Run(ctx context.Context, root string, fw oracle.Framework) oracle.Result
}

// ContextResolver locates the source of a failing test.
type ContextResolver interface {
	Resolve(root, id string, fw oracle.Framework) (oracle.TestContext, bool)
}

// CandidateSource produces up to count candidates for a test.
type CandidateSource interface {
	Generate(ctx context.Context, test model.FailingTest, count int) []model.Candidate
}

// Patcher mutates the project tree.
type Patcher interface {
	Resolve(path string) string
	Apply(path, content string) bool
	Snapshot(path string) (model.Snapshot, error)
	Restore(s model.Snapshot) bool
}

// Options tune one orchestrator run.
type Options struct {
	Root        string
	Framework   oracle.Framework
	Agents      int
	MaxAttempts int
	DryRun      bool
	Policy      AcceptancePolicy
}

// Orchestrator owns the project tree for the duration of a run. Only one
// candidate is live on disk at any time.
type Orchestrator struct {
	oracle   Oracle
	resolver ContextResolver
	source   CandidateSource
	patcher  Patcher
	observer Observer
	opts     Options
}

// NewOrchestrator wires the collaborators. observer may be nil.
func NewOrchestrator(o Oracle, resolver ContextResolver, source CandidateSource, patcher Patcher, observer Observer, opts Options) (*Orchestrator, error) {
	if o == nil || resolver == nil || source == nil || patcher == nil {
		return nil, fmt.Errorf("orchestrator: oracle, resolver, source and patcher are required")
	}
	if opts.Agents <= 0 {
		return nil, fmt.Errorf("orchestrator: agents must be > 0")
	}
	if opts.MaxAttempts <= 0 {
		return nil, fmt.Errorf("orchestrator: max attempts must be > 0")
	}
	if opts.Policy == "" {
		opts.Policy = PolicyLenient
	}
	if observer == nil {
		observer = Observers(nil)
	}
	return &Orchestrator{
		oracle:   o,
		resolver: resolver,
		source:   source,
		patcher:  patcher,
		observer: observer,
		opts:     opts,
	}, nil
}

// Run executes the initial suite and then processes every failing test in
// discovery order. Per-test failures never abort the run. The returned error is
// ErrNoTestsParsed or the context error when the run was canceled; the report
// is valid in both cases.
func (o *Orchestrator) Run(ctx context.Context) (model.RunReport, error) {
	startedAt := time.Now()
	initial := o.oracle.Run(ctx, o.opts.Root, o.opts.Framework)
	report := model.RunReport{InitialOutput: initial.Output}

	if initial.Passed {
		log.Info().Str("framework", string(o.opts.Framework)).Msg("all tests passing")
		o.observer.Notify(ctx, Event{Type: EventRunFinished, Report: &report})
		return report, nil
	}
	if len(initial.FailingTests) == 0 {
		return report, ErrNoTestsParsed
	}

	report.TotalFailing = len(initial.FailingTests)
	o.observer.Notify(ctx, Event{Type: EventRunStarted, Total: report.TotalFailing})
	log.Info().Int("failing", report.TotalFailing).Strs("tests", initial.FailingTests).Msg("initial suite failed")

	var runErr error
	for _, id := range initial.FailingTests {
		test := model.FailingTest{Identifier: id, OriginFailureOutput: initial.Output}
		if err := ctx.Err(); err != nil {
			runErr = err
			o.finish(ctx, &report, model.TestOutcome{Test: test, State: model.StateExhausted, Reason: model.ReasonCanceled})
			continue
		}
		outcome := o.fixTest(ctx, test, &report)
		if outcome.Reason == model.ReasonCanceled {
			runErr = ctx.Err()
		}
		o.finish(ctx, &report, outcome)
	}

	log.Info().
		Int("fixed", report.FixedCount).
		Int("total", report.TotalFailing).
		Bool("state_suspect", report.StateSuspect).
		Dur("duration", time.Since(startedAt)).
		Msg("run finished")
	o.observer.Notify(ctx, Event{Type: EventRunFinished, Report: &report})
	return report, runErr
}

func (o *Orchestrator) finish(ctx context.Context, report *model.RunReport, outcome model.TestOutcome) {
	if outcome.State == model.StateFixed {
		report.FixedCount++
	}
	report.Tests = append(report.Tests, outcome)
	o.observer.Notify(ctx, Event{Type: EventTestFinished, Test: &outcome.Test, Outcome: &outcome})
}

// fixTest walks one test from Pending to Fixed or Exhausted.
func (o *Orchestrator) fixTest(ctx context.Context, test model.FailingTest, report *model.RunReport) model.TestOutcome {
	logger := log.With().Str("test", test.Identifier).Logger()

	tc, ok := o.resolver.Resolve(o.opts.Root, test.Identifier, o.opts.Framework)
	if !ok || tc.Content == "" {
		logger.Warn().Msg("no source context; skipping")
		return model.TestOutcome{Test: test, State: model.StateExhausted, Reason: model.ReasonNoContext}
	}
	test.SourceFile = tc.File
	test.SourceContent = tc.Content
	o.observer.Notify(ctx, Event{Type: EventTestStarted, Test: &test})

	outcome := model.TestOutcome{Test: test, State: model.StateAttempting}
	for attempt := 0; attempt < o.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			outcome.State = model.StateExhausted
			outcome.Reason = model.ReasonCanceled
			return outcome
		}
		outcome.Attempts = attempt + 1
		logger.Info().Int("attempt", attempt).Int("agents", o.opts.Agents).Msg("generating candidates")
		o.observer.Notify(ctx, Event{Type: EventAttemptStarted, Test: &test, Attempt: attempt})

		candidates := o.source.Generate(ctx, test, o.opts.Agents)
		o.observer.Notify(ctx, Event{Type: EventCandidatesGenerated, Test: &test, Attempt: attempt, Candidates: candidates})
		if len(candidates) == 0 {
			logger.Warn().Int("attempt", attempt).Msg("no usable candidates")
			report.PerTestOutcomes = append(report.PerTestOutcomes, model.AttemptOutcome{
				Test: test, AttemptIndex: attempt, Verdict: model.VerdictNoCandidates,
			})
			continue
		}

		if o.opts.DryRun {
			o.observer.Notify(ctx, Event{Type: EventDryRun, Test: &test, Attempt: attempt, Candidates: candidates})
			report.PerTestOutcomes = append(report.PerTestOutcomes, model.AttemptOutcome{
				Test: test, AttemptIndex: attempt, Verdict: model.VerdictDryRun,
			})
			outcome.State = model.StateExhausted
			outcome.Reason = model.ReasonDryRun
			return outcome
		}

		if fixedBy := o.verifyAttempt(ctx, test, attempt, candidates, report); fixedBy != nil {
			outcome.State = model.StateFixed
			outcome.Reason = model.ReasonFixed
			outcome.FixedBy = fixedBy
			logger.Info().Int("attempt", attempt).Int("producer", fixedBy.ProducerID).Msg("test fixed")
			return outcome
		}
	}

	outcome.State = model.StateExhausted
	outcome.Reason = model.ReasonAttemptsExhausted
	if ctx.Err() != nil {
		outcome.Reason = model.ReasonCanceled
	}
	logger.Warn().Int("attempts", outcome.Attempts).Msg("attempts exhausted")
	return outcome
}

// verifyAttempt tries candidates one at a time in the order they completed.
// It returns the accepted candidate, or nil after every rejection was reverted.
func (o *Orchestrator) verifyAttempt(ctx context.Context, test model.FailingTest, attempt int, candidates []model.Candidate, report *model.RunReport) *model.Candidate {
	snapshots := make(map[string]model.Snapshot)
	for i := range candidates {
		cand := candidates[i]
		if i > 0 && ctx.Err() != nil {
			return nil
		}
		if cand.TargetFile == "" {
			cand.TargetFile = test.SourceFile
		}
		target := o.patcher.Resolve(cand.TargetFile)
		logger := log.With().
			Str("test", test.Identifier).
			Int("attempt", attempt).
			Int("producer", cand.ProducerID).
			Str("target", target).
			Logger()

		snap, ok := snapshots[target]
		if !ok {
			var err error
			snap, err = o.patcher.Snapshot(target)
			if err != nil {
				logger.Warn().Err(err).Msg("snapshot failed; rejecting candidate")
				o.record(ctx, report, test, attempt, &cand, false, model.VerdictApplyFailed)
				continue
			}
			snapshots[target] = snap
		}

		if !o.patcher.Apply(target, cand.Content) {
			logger.Warn().Msg("apply failed; rejecting candidate")
			o.revert(ctx, report, test, snap)
			o.record(ctx, report, test, attempt, &cand, false, model.VerdictApplyFailed)
			continue
		}

		res := o.oracle.Run(ctx, o.opts.Root, o.opts.Framework)
		if o.opts.Policy.Accepts(test.Identifier, res) {
			o.record(ctx, report, test, attempt, &cand, true, model.VerdictAccepted)
			return &cand
		}

		o.revert(ctx, report, test, snap)
		if res.Inconclusive {
			logger.Warn().Msg("oracle inconclusive; moving to next attempt")
			o.record(ctx, report, test, attempt, &cand, false, model.VerdictInconclusive)
			return nil
		}
		logger.Info().Int("still_failing", len(res.FailingTests)).Msg("candidate rejected")
		o.record(ctx, report, test, attempt, &cand, false, model.VerdictRejected)
	}
	return nil
}

func (o *Orchestrator) revert(ctx context.Context, report *model.RunReport, test model.FailingTest, snap model.Snapshot) {
	if o.patcher.Restore(snap) {
		return
	}
	log.Error().Str("test", test.Identifier).Str("path", snap.Path).Msg("revert failed; project state is suspect")
	report.StateSuspect = true
	report.RevertFailures = append(report.RevertFailures, snap.Path)
	o.observer.Notify(ctx, Event{Type: EventRevertFailed, Test: &test, Path: snap.Path})
}

func (o *Orchestrator) record(ctx context.Context, report *model.RunReport, test model.FailingTest, attempt int, cand *model.Candidate, fixed bool, verdict model.Verdict) {
	outcome := model.AttemptOutcome{
		Test:         test,
		AttemptIndex: attempt,
		Candidate:    cand,
		Fixed:        fixed,
		Verdict:      verdict,
	}
	report.PerTestOutcomes = append(report.PerTestOutcomes, outcome)
	o.observer.Notify(ctx, Event{Type: EventCandidateVerdict, Test: &test, Attempt: attempt, Candidate: cand, Verdict: verdict})
}
