// Package executor runs scenarios against browser sessions and records the
// outcome in the run report.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
	"github.com/devicelab-dev/modal-runner/pkg/report"
	"github.com/devicelab-dev/modal-runner/pkg/scenario"
)

// SessionFactory opens a fresh browser session for the named scenario.
// The runner owns what it returns and closes it when the scenario ends.
type SessionFactory func(ctx context.Context, name string) (core.Session, error)

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	OutputDir   string // Report output directory; empty keeps the report in memory
	Parallelism int    // Max concurrent scenarios (<= 1 = sequential)
	StopOnFail  bool   // Skip scenarios that have not started after the first failure

	Env scenario.Env

	// Runner metadata for reports
	RunnerVersion string
	Backend       string
	Browser       string
	Grid          string

	// Live progress callbacks. They may be called from several goroutines.
	OnScenarioStart func(idx, total int, name string)
	OnScenarioEnd   func(result ScenarioResult)
}

// RunResult contains the outcome of a run.
type RunResult struct {
	RunID    string
	Status   report.Status
	Total    int
	Passed   int
	Failed   int
	Errored  int
	Skipped  int
	Duration time.Duration // wall clock
	Results  []ScenarioResult
}

// ScenarioResult contains the outcome of a single scenario.
type ScenarioResult struct {
	Index    int
	Name     string
	Status   core.Status
	Duration time.Duration
	Error    error
	Category core.ErrorCategory
}

// Runner orchestrates scenario execution.
type Runner struct {
	config RunnerConfig
	open   SessionFactory
}

// New creates a new Runner.
func New(open SessionFactory, cfg RunnerConfig) *Runner {
	return &Runner{
		config: cfg,
		open:   open,
	}
}

// Run executes the scenarios, writes report.json and junit-report.xml when an
// output directory is configured, and returns the aggregated result.
// A failing scenario is not an error; Run only fails when the reports cannot
// be written.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) (*RunResult, error) {
	if r.open == nil {
		return nil, core.ErrInvalidConfig.WithMessage("no session factory configured")
	}

	infos := make([]report.CaseInfo, len(scenarios))
	for i, sc := range scenarios {
		infos[i] = report.CaseInfo{Name: sc.Name, Description: sc.Description}
	}
	skeleton := report.NewSkeleton(infos, report.RunnerInfo{
		Version: r.config.RunnerVersion,
		Backend: r.config.Backend,
		Browser: r.config.Browser,
		Grid:    r.config.Grid,
	})

	indexWriter := report.NewIndexWriter(r.config.OutputDir, skeleton)
	indexWriter.Start()
	logger.Info("run %s: %d scenario(s), parallelism %d", skeleton.RunID, len(scenarios), r.config.Parallelism)

	startTime := time.Now()
	var results []ScenarioResult
	if r.config.Parallelism <= 1 {
		results = r.runSequential(ctx, scenarios, indexWriter)
	} else {
		results = r.runParallel(ctx, scenarios, indexWriter)
	}
	wallClock := time.Since(startTime)

	indexWriter.End()

	if r.config.OutputDir != "" {
		if err := report.GenerateJUnit(r.config.OutputDir); err != nil {
			return nil, fmt.Errorf("junit report: %w", err)
		}
	}

	result := buildRunResult(results, wallClock)
	result.RunID = skeleton.RunID
	logger.Info("run %s finished: %s (%d passed, %d failed, %d errored, %d skipped)",
		result.RunID, result.Status, result.Passed, result.Failed, result.Errored, result.Skipped)
	return result, nil
}

func (r *Runner) runSequential(ctx context.Context, scenarios []scenario.Scenario, w *report.IndexWriter) []ScenarioResult {
	results := make([]ScenarioResult, len(scenarios))
	stopped := false
	for i, sc := range scenarios {
		if stopped || ctx.Err() != nil {
			results[i] = r.skip(i, sc, w)
			continue
		}
		results[i] = r.executeScenario(ctx, i, len(scenarios), sc, w)
		if r.config.StopOnFail && results[i].Status != core.StatusPassed {
			stopped = true
		}
	}
	return results
}

// executeScenario opens a session, runs one scenario on it and closes it.
func (r *Runner) executeScenario(ctx context.Context, idx, total int, sc scenario.Scenario, w *report.IndexWriter) ScenarioResult {
	if r.config.OnScenarioStart != nil {
		r.config.OnScenarioStart(idx, total, sc.Name)
	}

	start := time.Now()
	w.UpdateCase(idx, report.CaseUpdate{Status: report.StatusRunning, StartTime: &start})
	logger.Info("[%d/%d] %s: started", idx+1, total, sc.Name)

	err := r.runOnFreshSession(ctx, sc)

	res := ScenarioResult{
		Index:    idx,
		Name:     sc.Name,
		Status:   core.StatusOf(err),
		Duration: time.Since(start),
		Error:    err,
		Category: core.CategoryOf(err),
	}

	end := time.Now()
	durationMs := res.Duration.Milliseconds()
	update := report.CaseUpdate{
		Status:   report.StatusOf(res.Status),
		EndTime:  &end,
		Duration: &durationMs,
	}
	if err != nil {
		msg := err.Error()
		update.Error = &msg
		update.Category = res.Category.String()
		logger.Warn("[%d/%d] %s: %s (%s): %v", idx+1, total, sc.Name, res.Status, res.Category, err)
	} else {
		logger.Info("[%d/%d] %s: passed in %s", idx+1, total, sc.Name, res.Duration)
	}
	w.UpdateCase(idx, update)

	if r.config.OnScenarioEnd != nil {
		r.config.OnScenarioEnd(res)
	}
	return res
}

func (r *Runner) runOnFreshSession(ctx context.Context, sc scenario.Scenario) (err error) {
	if sc.Run == nil {
		return core.ErrInvalidConfig.WithMessage("scenario " + sc.Name + " has no steps")
	}

	s, err := r.open(ctx, sc.Name)
	if err != nil {
		var ee *core.ExecutionError
		if errors.As(err, &ee) {
			return err
		}
		return core.ErrSessionNotCreated.WithCause(err)
	}
	defer func() {
		closer, ok := s.(core.Closer)
		if !ok {
			return
		}
		if cerr := closer.Close(); cerr != nil {
			logger.Warn("%s: close session: %v", sc.Name, cerr)
		}
	}()

	if m, ok := s.(core.Maximizer); ok {
		if err := m.Maximize(ctx); err != nil {
			logger.Debug("%s: maximize: %v", sc.Name, err)
		}
	}

	return sc.Run(ctx, s, r.config.Env)
}

func (r *Runner) skip(idx int, sc scenario.Scenario, w *report.IndexWriter) ScenarioResult {
	w.UpdateCase(idx, report.CaseUpdate{Status: report.StatusSkipped})
	res := ScenarioResult{
		Index:  idx,
		Name:   sc.Name,
		Status: core.StatusSkipped,
	}
	if r.config.OnScenarioEnd != nil {
		r.config.OnScenarioEnd(res)
	}
	return res
}

// buildRunResult aggregates scenario results into a run result.
func buildRunResult(results []ScenarioResult, wallClock time.Duration) *RunResult {
	result := &RunResult{
		Total:    len(results),
		Results:  results,
		Duration: wallClock,
	}

	for _, sr := range results {
		switch sr.Status {
		case core.StatusPassed:
			result.Passed++
		case core.StatusFailed:
			result.Failed++
		case core.StatusErrored:
			result.Errored++
		case core.StatusSkipped:
			result.Skipped++
		}
	}

	switch {
	case result.Failed > 0:
		result.Status = report.StatusFailed
	case result.Errored > 0:
		result.Status = report.StatusErrored
	default:
		result.Status = report.StatusPassed // all passed or skipped
	}
	return result
}
