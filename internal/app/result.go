package app

import "time"

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// EntityOutcome carries enough detail per entity to drive a retry-next-run
// strategy: identifier, error kind and the attempt count spent.
type EntityOutcome struct {
	Key      string
	URL      string
	Status   Status
	Degraded []string
	Err      string
	Attempts int
}

// RunResult is built incrementally by the orchestrator and immutable once
// the run ends.
type RunResult struct {
	StartedAt time.Time
	Attempted int
	Succeeded int
	Partial   int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
	Outcomes  []EntityOutcome
}

func (r *RunResult) record(outcome EntityOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	switch outcome.Status {
	case StatusSucceeded:
		r.Attempted++
		r.Succeeded++
	case StatusPartial:
		r.Attempted++
		r.Partial++
	case StatusFailed:
		r.Attempted++
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}
