// Package report provides JSON and JUnit reporting for scenario runs.
//
// Layout of the output directory:
//   - report.json: the run index, rewritten atomically on every case update
//   - junit-report.xml: generated from report.json when the run ends
package report

import (
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusErrored || s == StatusSkipped
}

// StatusOf converts an execution status to its report form.
func StatusOf(s core.Status) Status {
	return Status(s.String())
}

// Report is the run index written to report.json.
type Report struct {
	Version     string     `json:"version"`
	RunID       string     `json:"runId"`
	UpdateSeq   uint64     `json:"updateSeq"`
	Status      Status     `json:"status"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Runner      RunnerInfo `json:"runner"`
	Summary     Summary    `json:"summary"`
	Cases       []Case     `json:"cases"`
}

// RunnerInfo describes the runner and the browser it drove.
type RunnerInfo struct {
	Version string `json:"version"`
	Backend string `json:"backend"` // cdp, webdriver, html
	Browser string `json:"browser,omitempty"`
	Grid    string `json:"grid,omitempty"` // redacted grid host for webdriver runs
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// Case is one scenario in the run.
type Case struct {
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    *int64     `json:"duration,omitempty"` // milliseconds
	Category    string     `json:"category,omitempty"` // error category for failed and errored cases
	Error       *string    `json:"error,omitempty"`
}

// CaseUpdate is a status change for one case.
type CaseUpdate struct {
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Category  string
	Error     *string
}
