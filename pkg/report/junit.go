package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GenerateJUnit reads report.json from reportDir and writes
// junit-report.xml next to it.
func GenerateJUnit(reportDir string) error {
	r, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	outputPath := filepath.Join(reportDir, "junit-report.xml")
	if err := os.WriteFile(outputPath, []byte(buildJUnitXML(r)), 0o644); err != nil {
		return fmt.Errorf("write junit xml: %w", err)
	}
	return nil
}

// buildJUnitXML renders the report as a single JUnit test suite.
func buildJUnitXML(r *Report) string {
	var totalTime float64
	if r.EndTime != nil {
		totalTime = r.EndTime.Sub(r.StartTime).Seconds()
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(fmt.Sprintf(
		`<testsuites tests="%d" failures="%d" skipped="%d" errors="%d" time="%.3f">`+"\n",
		r.Summary.Total,
		r.Summary.Failed,
		r.Summary.Skipped,
		r.Summary.Errored,
		totalTime,
	))

	b.WriteString(fmt.Sprintf(
		`  <testsuite name="modal-runner" tests="%d" failures="%d" skipped="%d" errors="%d" time="%.3f" timestamp="%s">`+"\n",
		r.Summary.Total,
		r.Summary.Failed,
		r.Summary.Skipped,
		r.Summary.Errored,
		totalTime,
		r.StartTime.Format(time.RFC3339),
	))

	b.WriteString("    <properties>\n")
	writeProperty(&b, "    ", "run.id", r.RunID)
	writeProperty(&b, "    ", "backend", r.Runner.Backend)
	writeProperty(&b, "    ", "browser", r.Runner.Browser)
	writeProperty(&b, "    ", "grid", r.Runner.Grid)
	b.WriteString("    </properties>\n")

	for i := range r.Cases {
		b.WriteString(buildTestCase(&r.Cases[i]))
	}

	b.WriteString("  </testsuite>\n")
	b.WriteString("</testsuites>\n")
	return b.String()
}

// buildTestCase builds a single <testcase> element.
func buildTestCase(c *Case) string {
	var tcTime float64
	if c.Duration != nil {
		tcTime = float64(*c.Duration) / 1000.0
	}

	var b strings.Builder
	name := xmlEscape(c.Name)
	b.WriteString(fmt.Sprintf(
		`    <testcase name="%s" classname="modal-runner.%s" time="%.3f">`+"\n",
		name, name, tcTime,
	))

	errMsg := ""
	if c.Error != nil {
		errMsg = *c.Error
	}

	switch c.Status {
	case StatusFailed:
		b.WriteString(fmt.Sprintf(
			`      <failure message="%s" type="%s">%s</failure>`+"\n",
			xmlEscape(errMsg),
			xmlEscape(failureType(c.Category)),
			xmlEscape(c.Description),
		))
	case StatusErrored:
		b.WriteString(fmt.Sprintf(
			`      <error message="%s" type="%s"></error>`+"\n",
			xmlEscape(errMsg),
			xmlEscape(failureType(c.Category)),
		))
	case StatusSkipped:
		b.WriteString("      <skipped/>\n")
	}

	b.WriteString("    </testcase>\n")
	return b.String()
}

func writeProperty(b *strings.Builder, indent, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(fmt.Sprintf(`%s  <property name="%s" value="%s"/>`+"\n", indent, xmlEscape(name), xmlEscape(value)))
}

// failureType maps an error category to a JUnit failure type.
func failureType(category string) string {
	switch category {
	case "timeout":
		return "TimeoutError"
	case "lookup":
		return "ElementNotFoundError"
	case "interaction":
		return "ElementInteractionError"
	case "assertion":
		return "AssertionError"
	case "connection":
		return "SessionError"
	case "config":
		return "ConfigError"
	default:
		return "TestError"
	}
}

// xmlEscape escapes special XML characters in a string.
func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
