package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/driver/htmlpage"
	"github.com/devicelab-dev/modal-runner/pkg/report"
	"github.com/devicelab-dev/modal-runner/pkg/scenario"
)

// trackedSession counts Maximize and Close calls on top of an offline page.
type trackedSession struct {
	*htmlpage.Page
	maximized *int32
	closed    *int32
}

func (s trackedSession) Maximize(ctx context.Context) error {
	atomic.AddInt32(s.maximized, 1)
	return nil
}

func (s trackedSession) Close() error {
	atomic.AddInt32(s.closed, 1)
	return nil
}

func offlineFactory(t *testing.T, maximized, closed *int32) SessionFactory {
	t.Helper()
	fixtures, err := scenario.Fixtures(scenario.DefaultPages())
	if err != nil {
		t.Fatalf("Fixtures() error = %v", err)
	}
	return func(ctx context.Context, name string) (core.Session, error) {
		page := htmlpage.New(htmlpage.WithFixtures(fixtures), htmlpage.WithPollInterval(5*time.Millisecond))
		return trackedSession{Page: page, maximized: maximized, closed: closed}, nil
	}
}

func testEnv() scenario.Env {
	return scenario.Env{Pages: scenario.DefaultPages(), Timeout: 200 * time.Millisecond}
}

func fixed(name string, err error) scenario.Scenario {
	return scenario.Scenario{
		Name: name,
		Run: func(ctx context.Context, s core.Session, env scenario.Env) error {
			return err
		},
	}
}

func TestRunner_Run_AllPassed(t *testing.T) {
	tmpDir := t.TempDir()
	var maximized, closed int32

	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{
		OutputDir:     tmpDir,
		Env:           testEnv(),
		RunnerVersion: "1.0.0",
		Backend:       "html",
	})

	scenarios := scenario.Default().All()
	result, err := runner.Run(context.Background(), scenarios)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Status != report.StatusPassed {
		for _, r := range result.Results {
			if r.Error != nil {
				t.Logf("%s: %v", r.Name, r.Error)
			}
		}
		t.Fatalf("Status = %v, want passed", result.Status)
	}
	if result.Total != len(scenarios) || result.Passed != len(scenarios) {
		t.Errorf("Total/Passed = %d/%d, want %d", result.Total, result.Passed, len(scenarios))
	}
	if result.RunID == "" {
		t.Error("RunID should be set")
	}
	if int(maximized) != len(scenarios) {
		t.Errorf("maximized %d times, want %d", maximized, len(scenarios))
	}
	if int(closed) != len(scenarios) {
		t.Errorf("closed %d sessions, want %d", closed, len(scenarios))
	}

	idx, err := report.ReadReport(tmpDir)
	if err != nil {
		t.Fatalf("ReadReport() error = %v", err)
	}
	if idx.Status != report.StatusPassed || idx.RunID != result.RunID {
		t.Errorf("report = %s/%s, want passed/%s", idx.Status, idx.RunID, result.RunID)
	}
	if idx.Runner.Backend != "html" {
		t.Errorf("Runner.Backend = %q", idx.Runner.Backend)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "junit-report.xml")); err != nil {
		t.Errorf("junit-report.xml not written: %v", err)
	}
}

func TestRunner_Run_StatusMapping(t *testing.T) {
	var maximized, closed int32
	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{Env: testEnv()})

	result, err := runner.Run(context.Background(), []scenario.Scenario{
		fixed("ok", nil),
		fixed("assert", core.Mismatch("body text", "a", "b")),
		fixed("lookup", core.NotFound(core.ByID("x"))),
		fixed("conn", core.ErrServerUnreachable),
		fixed("plain", errors.New("boom")),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []struct {
		status   core.Status
		category core.ErrorCategory
	}{
		{core.StatusPassed, core.ErrCategoryNone},
		{core.StatusFailed, core.ErrCategoryAssertion},
		{core.StatusFailed, core.ErrCategoryLookup},
		{core.StatusErrored, core.ErrCategoryConnection},
		{core.StatusErrored, core.ErrCategoryConnection},
	}
	for i, w := range want {
		got := result.Results[i]
		if got.Status != w.status || got.Category != w.category {
			t.Errorf("%s: got %v/%v, want %v/%v", got.Name, got.Status, got.Category, w.status, w.category)
		}
	}
	if result.Status != report.StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
	if result.Passed != 1 || result.Failed != 2 || result.Errored != 2 {
		t.Errorf("counts = %+v", result)
	}
}

func TestRunner_Run_ErroredOnly(t *testing.T) {
	var maximized, closed int32
	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{})

	result, err := runner.Run(context.Background(), []scenario.Scenario{
		fixed("ok", nil),
		fixed("conn", core.ErrSessionNotCreated),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Status != report.StatusErrored {
		t.Errorf("Status = %v, want errored", result.Status)
	}
}

func TestRunner_Run_StopOnFail(t *testing.T) {
	var maximized, closed int32
	var started []string
	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{
		StopOnFail: true,
		OnScenarioStart: func(idx, total int, name string) {
			started = append(started, name)
		},
	})

	result, err := runner.Run(context.Background(), []scenario.Scenario{
		fixed("first", nil),
		fixed("second", core.ErrAssertion),
		fixed("third", nil),
		fixed("fourth", nil),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if strings.Join(started, ",") != "first,second" {
		t.Errorf("started = %v", started)
	}
	if result.Skipped != 2 || result.Results[3].Status != core.StatusSkipped {
		t.Errorf("Skipped = %d, results = %+v", result.Skipped, result.Results)
	}
}

func TestRunner_Run_SessionFactoryError(t *testing.T) {
	runner := New(func(ctx context.Context, name string) (core.Session, error) {
		return nil, fmt.Errorf("dial tcp: connection refused")
	}, RunnerConfig{})

	ran := false
	result, err := runner.Run(context.Background(), []scenario.Scenario{{
		Name: "never",
		Run: func(ctx context.Context, s core.Session, env scenario.Env) error {
			ran = true
			return nil
		},
	}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ran {
		t.Error("scenario ran without a session")
	}
	got := result.Results[0]
	if got.Status != core.StatusErrored || !errors.Is(got.Error, core.ErrSessionNotCreated) {
		t.Errorf("result = %+v", got)
	}
}

func TestRunner_Run_MissingSteps(t *testing.T) {
	var maximized, closed int32
	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{})

	result, err := runner.Run(context.Background(), []scenario.Scenario{{Name: "empty"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !errors.Is(result.Results[0].Error, core.ErrInvalidConfig) {
		t.Errorf("Error = %v, want invalid config", result.Results[0].Error)
	}
	if closed != 0 {
		t.Error("no session should have been opened")
	}
}

func TestRunner_Run_NoFactory(t *testing.T) {
	_, err := New(nil, RunnerConfig{}).Run(context.Background(), nil)
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Run() error = %v, want invalid config", err)
	}
}

func TestRunner_Run_Cancelled(t *testing.T) {
	var maximized, closed int32
	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := runner.Run(ctx, []scenario.Scenario{fixed("a", nil), fixed("b", nil)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
}

func TestRunner_Run_Parallel(t *testing.T) {
	tmpDir := t.TempDir()
	var maximized, closed int32

	var mu sync.Mutex
	sessions := map[core.Session]string{}
	var running, peak int32

	scenarios := make([]scenario.Scenario, 6)
	for i := range scenarios {
		name := fmt.Sprintf("s%d", i)
		scenarios[i] = scenario.Scenario{
			Name: name,
			Run: func(ctx context.Context, s core.Session, env scenario.Env) error {
				n := atomic.AddInt32(&running, 1)
				defer atomic.AddInt32(&running, -1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}

				mu.Lock()
				if other, ok := sessions[s]; ok {
					t.Errorf("%s reused the session of %s", name, other)
				}
				sessions[s] = name
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)
				return nil
			},
		}
	}

	var ended int32
	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{
		OutputDir:   tmpDir,
		Parallelism: 3,
		OnScenarioEnd: func(ScenarioResult) {
			atomic.AddInt32(&ended, 1)
		},
	})

	result, err := runner.Run(context.Background(), scenarios)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Passed != 6 {
		t.Errorf("Passed = %d, want 6", result.Passed)
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
	if ended != 6 || closed != 6 {
		t.Errorf("ended/closed = %d/%d, want 6/6", ended, closed)
	}
	for i, r := range result.Results {
		if r.Index != i || r.Name != scenarios[i].Name {
			t.Errorf("result %d = %+v, want order preserved", i, r)
		}
	}

	idx, err := report.ReadReport(tmpDir)
	if err != nil {
		t.Fatalf("ReadReport() error = %v", err)
	}
	if idx.Summary.Passed != 6 || idx.Summary.Running != 0 {
		t.Errorf("Summary = %+v", idx.Summary)
	}
}

func TestRunner_Run_ParallelStopOnFail(t *testing.T) {
	var maximized, closed int32
	runner := New(offlineFactory(t, &maximized, &closed), RunnerConfig{
		Parallelism: 2,
		StopOnFail:  true,
	})

	scenarios := []scenario.Scenario{fixed("fail", core.ErrAssertion)}
	for i := 0; i < 10; i++ {
		scenarios = append(scenarios, scenario.Scenario{
			Name: fmt.Sprintf("slow%d", i),
			Run: func(ctx context.Context, s core.Session, env scenario.Env) error {
				time.Sleep(10 * time.Millisecond)
				return nil
			},
		})
	}

	result, err := runner.Run(context.Background(), scenarios)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if result.Skipped == 0 {
		t.Error("expected queued scenarios to be skipped after the failure")
	}
	if result.Total != result.Passed+result.Failed+result.Skipped {
		t.Errorf("counts do not add up: %+v", result)
	}
}

func TestBuildRunResult(t *testing.T) {
	result := buildRunResult([]ScenarioResult{
		{Status: core.StatusPassed},
		{Status: core.StatusSkipped},
	}, time.Second)

	if result.Status != report.StatusPassed {
		t.Errorf("Status = %v, want passed", result.Status)
	}
	if result.Duration != time.Second {
		t.Errorf("Duration = %v", result.Duration)
	}
}
