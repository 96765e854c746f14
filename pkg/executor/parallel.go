package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/report"
	"github.com/devicelab-dev/modal-runner/pkg/scenario"
)

// runParallel runs up to Parallelism scenarios at once. Every worker opens its
// own session; sessions are never shared between scenarios.
func (r *Runner) runParallel(ctx context.Context, scenarios []scenario.Scenario, w *report.IndexWriter) []ScenarioResult {
	results := make([]ScenarioResult, len(scenarios))
	var stopped atomic.Bool

	var g errgroup.Group
	g.SetLimit(r.config.Parallelism)

	total := len(scenarios)
	for i := range scenarios {
		i := i
		g.Go(func() error {
			// Checked once the worker slot is acquired, so scenarios queued
			// behind a failure are skipped rather than started.
			if stopped.Load() || ctx.Err() != nil {
				results[i] = r.skip(i, scenarios[i], w)
				return nil
			}
			results[i] = r.executeScenario(ctx, i, total, scenarios[i], w)
			if r.config.StopOnFail && results[i].Status != core.StatusPassed {
				stopped.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through results

	return results
}

