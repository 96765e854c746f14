package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// CaseInfo names a case in the skeleton.
type CaseInfo struct {
	Name        string
	Description string
}

// NewSkeleton builds a report with every case pending and a fresh run id.
func NewSkeleton(cases []CaseInfo, runner RunnerInfo) *Report {
	now := time.Now()
	r := &Report{
		Version:     Version,
		RunID:       uuid.NewString(),
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Runner:      runner,
		Cases:       make([]Case, len(cases)),
	}
	for i, c := range cases {
		r.Cases[i] = Case{
			Index:       i,
			Name:        c.Name,
			Description: c.Description,
			Status:      StatusPending,
		}
	}
	r.Summary = summarize(r.Cases)
	return r
}

// IndexWriter provides thread-safe updates to report.json.
// Scenario workers update their own case concurrently.
type IndexWriter struct {
	mu     sync.Mutex
	path   string
	report *Report
}

// NewIndexWriter creates an IndexWriter for outputDir. An empty outputDir
// keeps the report in memory only.
func NewIndexWriter(outputDir string, r *Report) *IndexWriter {
	w := &IndexWriter{report: r}
	if outputDir != "" {
		w.path = filepath.Join(outputDir, "report.json")
	}
	return w
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.report.Status = StatusRunning
	w.report.StartTime = now
	w.flushLocked()
}

// UpdateCase applies update to the case at index i.
func (w *IndexWriter) UpdateCase(i int, update CaseUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i < 0 || i >= len(w.report.Cases) {
		logger.Warn("report: case index %d out of range", i)
		return
	}
	c := &w.report.Cases[i]
	c.Status = update.Status
	if update.StartTime != nil {
		c.StartTime = update.StartTime
	}
	if update.EndTime != nil {
		c.EndTime = update.EndTime
	}
	if update.Duration != nil {
		c.Duration = update.Duration
	}
	if update.Category != "" {
		c.Category = update.Category
	}
	if update.Error != nil {
		c.Error = update.Error
	}
	w.flushLocked()
}

// End marks the run as complete.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.report.EndTime = &now
	w.report.Status = runStatus(w.report.Cases)
	w.flushLocked()
}

// Report returns a copy of the current report.
func (w *IndexWriter) Report() *Report {
	w.mu.Lock()
	defer w.mu.Unlock()

	cp := *w.report
	cp.Cases = append([]Case(nil), w.report.Cases...)
	return &cp
}

func (w *IndexWriter) flushLocked() {
	w.report.UpdateSeq++
	w.report.LastUpdated = time.Now()
	w.report.Summary = summarize(w.report.Cases)

	if w.path == "" {
		return
	}
	if err := atomicWriteJSON(w.path, w.report); err != nil {
		logger.Warn("report: write %s: %v", w.path, err)
	}
}

// summarize calculates the summary from case statuses.
func summarize(cases []Case) Summary {
	var s Summary
	for _, c := range cases {
		s.Total++
		switch c.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// runStatus determines the overall run status from the cases. Failures
// outrank errors; skipped cases do not fail a run.
func runStatus(cases []Case) Status {
	hasFailure, hasError := false, false
	for _, c := range cases {
		switch {
		case c.Status == StatusFailed:
			hasFailure = true
		case c.Status == StatusErrored:
			hasError = true
		case !c.Status.IsTerminal():
			return StatusRunning
		}
	}

	if hasFailure {
		return StatusFailed
	}
	if hasError {
		return StatusErrored
	}
	return StatusPassed
}
