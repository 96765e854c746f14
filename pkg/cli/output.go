package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/config"
	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/executor"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow scenario threshold
const slowThreshold = 30 * time.Second

var colorsEnabled = true

// progress callbacks fire from parallel workers
var printMu sync.Mutex

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printBanner(cfg *config.Config, total int) {
	target := cfg.Backend
	if cfg.Backend == config.BackendWebDriver {
		target += " (" + cfg.Capabilities.BrowserName + ")"
	}
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  %smodal-runner %s%s  %d scenario(s) on %s\n",
		color(colorBold), Version, color(colorReset), total, target)
	fmt.Fprintln(stdout, strings.Repeat("─", 60))
}

func onScenarioStart(idx, total int, name string) {
	printMu.Lock()
	defer printMu.Unlock()
	fmt.Fprintf(stdout, "  %s[%d/%d]%s %s\n", color(colorCyan), idx+1, total, color(colorReset), name)
}

func onScenarioEnd(r executor.ScenarioResult) {
	printMu.Lock()
	defer printMu.Unlock()

	dur := formatDuration(r.Duration)
	switch r.Status {
	case core.StatusPassed:
		symbol, symbolColor := "✓", color(colorGreen)
		if r.Duration >= slowThreshold {
			symbol, symbolColor = "⚠", color(colorYellow)
		}
		fmt.Fprintf(stdout, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), r.Name, color(colorGray), dur, color(colorReset))
	case core.StatusSkipped:
		fmt.Fprintf(stdout, "    %s-%s %s (skipped)\n", color(colorCyan), color(colorReset), r.Name)
	default:
		fmt.Fprintf(stdout, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), r.Name, dur)
		if r.Error != nil {
			fmt.Fprintf(stdout, "      %s╰─%s [%s] %v\n", color(colorGray), color(colorReset), r.Category, r.Error)
		}
	}
}

func printSummary(result *executor.RunResult) {
	tableWidth := 72
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, strings.Repeat("═", tableWidth))
	fmt.Fprintf(stdout, "  %-30s %-9s %-12s %10s\n", "Scenario", "Status", "Category", "Duration")
	fmt.Fprintln(stdout, strings.Repeat("─", tableWidth))

	for _, r := range result.Results {
		status, statusColor := statusLabel(r.Status)
		category := ""
		if r.Category != core.ErrCategoryNone {
			category = r.Category.String()
		}
		name := r.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		fmt.Fprintf(stdout, "  %-30s %s%-9s%s %-12s %10s\n",
			name, statusColor, status, color(colorReset), category, formatDuration(r.Duration))
	}

	fmt.Fprintln(stdout, strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if result.Failed+result.Errored > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(stdout, "  %s%-30s%s %s%-9s%s %-12s %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, fmt.Sprintf("%d/%d", result.Passed, result.Total), color(colorReset),
		"", formatDuration(result.Duration))
	fmt.Fprintln(stdout, strings.Repeat("═", tableWidth))
	if result.Failed+result.Errored+result.Skipped > 0 {
		fmt.Fprintf(stdout, "  %d failed, %d errored, %d skipped\n", result.Failed, result.Errored, result.Skipped)
	}
	fmt.Fprintln(stdout)
}

func statusLabel(s core.Status) (string, string) {
	switch s {
	case core.StatusPassed:
		return "✓ PASS", color(colorGreen)
	case core.StatusSkipped:
		return "- SKIP", color(colorCyan)
	case core.StatusErrored:
		return "! ERROR", color(colorYellow)
	default:
		return "✗ FAIL", color(colorRed)
	}
}

// formatDuration shows milliseconds below one second, seconds below a
// minute, and minutes with seconds otherwise.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
