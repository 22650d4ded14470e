// Package model holds the data exchanged between the oracle, the candidate source and the orchestrator.
package model

import "io/fs"

// TestState is the lifecycle state of a failing test inside a run.
type TestState string

const (
	StatePending    TestState = "pending"
	StateAttempting TestState = "attempting"
	StateFixed      TestState = "fixed"
	StateExhausted  TestState = "exhausted"
)

// Reason explains how a test reached its terminal state.
type Reason string

const (
	ReasonFixed             Reason = "fixed"
	ReasonNoContext         Reason = "no_context"
	ReasonAttemptsExhausted Reason = "attempts_exhausted"
	ReasonDryRun            Reason = "dry_run"
	ReasonCanceled          Reason = "canceled"
)

// Verdict is the result of one verification step.
type Verdict string

const (
	VerdictAccepted     Verdict = "accepted"
	VerdictRejected     Verdict = "rejected"
	VerdictApplyFailed  Verdict = "apply_failed"
	VerdictInconclusive Verdict = "inconclusive"
	VerdictNoCandidates Verdict = "no_candidates"
	VerdictDryRun       Verdict = "dry_run"
)

// FailingTest is a test reported as failing by the initial oracle run.
type FailingTest struct {
	Identifier          string `json:"identifier"`
	SourceFile          string `json:"source_file,omitempty"`
	SourceContent       string `json:"source_content,omitempty"`
	OriginFailureOutput string `json:"origin_failure_output"`
}

// HasContext reports whether source code was resolved for the test.
func (t FailingTest) HasContext() bool {
	return t.SourceContent != ""
}

// Candidate is one proposed full-file replacement.
type Candidate struct {
	ProducerID  int     `json:"producer_id"`
	TargetFile  string  `json:"target_file"`
	Content     string  `json:"content"`
	Rationale   string  `json:"rationale"`
	Temperature float64 `json:"temperature"`
	Valid       bool    `json:"valid"`
}

// AttemptOutcome records a single verification (or an attempt that produced nothing to verify).
type AttemptOutcome struct {
	Test         FailingTest `json:"test"`
	AttemptIndex int         `json:"attempt_index"`
	Candidate    *Candidate  `json:"candidate,omitempty"`
	Fixed        bool        `json:"fixed"`
	Verdict      Verdict     `json:"verdict"`
}

// TestOutcome is the terminal state of one failing test.
type TestOutcome struct {
	Test     FailingTest `json:"test"`
	State    TestState   `json:"state"`
	Reason   Reason      `json:"reason"`
	Attempts int         `json:"attempts"`
	FixedBy  *Candidate  `json:"fixed_by,omitempty"`
}

// RunReport aggregates the outcome of a whole run.
type RunReport struct {
	TotalFailing    int              `json:"total_failing"`
	FixedCount      int              `json:"fixed_count"`
	PerTestOutcomes []AttemptOutcome `json:"per_test_outcomes"`
	Tests           []TestOutcome    `json:"tests"`
	StateSuspect    bool             `json:"state_suspect"`
	RevertFailures  []string         `json:"revert_failures,omitempty"`
	InitialOutput   string           `json:"-"`
}

// Status summarizes the run outcome.
func (r RunReport) Status() string {
	switch {
	case r.TotalFailing == 0:
		return "clean"
	case r.FixedCount == r.TotalFailing:
		return "all_fixed"
	case r.FixedCount > 0:
		return "partial"
	default:
		return "none_fixed"
	}
}

// Snapshot is the content of a project file captured right before a candidate touches it.
type Snapshot struct {
	Path            string
	OriginalContent string
	Existed         bool
	// Mode holds the permission bits of an existing file.
	Mode fs.FileMode
}
