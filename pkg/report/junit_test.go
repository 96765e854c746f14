package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateJUnit(t *testing.T) {
	tmpDir := t.TempDir()

	now := time.Now()
	endTime := now.Add(10 * time.Second)
	d1 := int64(5000)
	d2 := int64(3000)
	failMsg := `body of id="myMultiModal": expected <text>, got ""`
	connMsg := "could not create browser session"

	r := &Report{
		Version:   Version,
		RunID:     "run-1",
		Status:    StatusFailed,
		StartTime: now,
		EndTime:   &endTime,
		Runner:    RunnerInfo{Version: "dev", Backend: "webdriver", Browser: "chrome", Grid: "https://hub.lambdatest.com/wd/hub"},
		Summary:   Summary{Total: 4, Passed: 1, Failed: 1, Errored: 1, Skipped: 1},
		Cases: []Case{
			{Index: 0, Name: "modal-dialog", Status: StatusPassed, Duration: &d1},
			{Index: 1, Name: "multiple-modals", Description: "two modals", Status: StatusFailed, Duration: &d2, Category: "assertion", Error: &failMsg},
			{Index: 2, Name: "prompt-alert", Status: StatusErrored, Category: "connection", Error: &connMsg},
			{Index: 3, Name: "popup-window", Status: StatusSkipped},
		},
	}
	if err := atomicWriteJSON(filepath.Join(tmpDir, "report.json"), r); err != nil {
		t.Fatalf("write report: %v", err)
	}

	if err := GenerateJUnit(tmpDir); err != nil {
		t.Fatalf("GenerateJUnit: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "junit-report.xml"))
	if err != nil {
		t.Fatalf("read junit xml: %v", err)
	}
	xml := string(content)

	checks := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<testsuites tests="4" failures="1" skipped="1" errors="1" time="10.000">`,
		`<testsuite name="modal-runner" tests="4" failures="1" skipped="1" errors="1"`,
		`<property name="run.id" value="run-1"/>`,
		`<property name="backend" value="webdriver"/>`,
		`<property name="grid" value="https://hub.lambdatest.com/wd/hub"/>`,
		`<testcase name="modal-dialog" classname="modal-runner.modal-dialog" time="5.000">`,
		`<failure message="body of id=&quot;myMultiModal&quot;: expected &lt;text&gt;, got &quot;&quot;" type="AssertionError">two modals</failure>`,
		`<error message="could not create browser session" type="SessionError"></error>`,
		`<skipped/>`,
		`</testsuites>`,
	}
	for _, check := range checks {
		if !strings.Contains(xml, check) {
			t.Errorf("JUnit XML missing: %s", check)
		}
	}
}

func TestGenerateJUnit_MissingReport(t *testing.T) {
	if err := GenerateJUnit(t.TempDir()); err == nil {
		t.Error("expected error when report.json is missing")
	}
}

func TestFailureType(t *testing.T) {
	tests := map[string]string{
		"timeout":     "TimeoutError",
		"lookup":      "ElementNotFoundError",
		"interaction": "ElementInteractionError",
		"assertion":   "AssertionError",
		"connection":  "SessionError",
		"config":      "ConfigError",
		"":            "TestError",
	}
	for category, want := range tests {
		if got := failureType(category); got != want {
			t.Errorf("failureType(%q) = %q, want %q", category, got, want)
		}
	}
}

func TestXMLEscape(t *testing.T) {
	if got := xmlEscape(`a<b>&"c'`); got != "a&lt;b&gt;&amp;&quot;c&apos;" {
		t.Errorf("xmlEscape() = %q", got)
	}
}
