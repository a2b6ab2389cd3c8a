package model

import "time"

// RunKind identifies which pipeline stage produced a ledger entry.
type RunKind string

const (
	RunExtract RunKind = "extract"
	RunFilter  RunKind = "filter"
)

// Run is one execution of a pipeline stage as recorded in the run ledger.
//
// Cursor is only meaningful for extraction runs: it holds the last since_id
// the run advanced to, so a later run can opt in to resuming from it.
type Run struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Cursor     int64      `json:"cursor"`
	Accepted   int        `json:"accepted"`
	Rejected   int        `json:"rejected"`
	StopReason string     `json:"stopReason"`
}
