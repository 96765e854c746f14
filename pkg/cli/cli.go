// Package cli provides the command-line interface for modal-runner.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// stdout receives all user-facing output.
var stdout io.Writer = os.Stdout

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: ./config.yaml or ./config.yml if present)",
		EnvVars: []string{"MODAL_RUNNER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "Browser backend (cdp, webdriver, html)",
		EnvVars: []string{"MODAL_RUNNER_BACKEND"},
	},
	&cli.StringFlag{
		Name:    "grid-url",
		Usage:   "WebDriver endpoint for the webdriver backend",
		EnvVars: []string{"MODAL_RUNNER_GRID_URL", "LT_GRID_URL"},
	},
	&cli.BoolFlag{
		Name:    "headless",
		Usage:   "Run Chrome without a window (cdp and local chromedriver)",
		EnvVars: []string{"MODAL_RUNNER_HEADLESS"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging",
		EnvVars: []string{"MODAL_RUNNER_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Log file path (default: <output>/modal-runner.log)",
		EnvVars: []string{"MODAL_RUNNER_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "modal-runner",
		Usage:   "Browser checks for modal dialogs, native alerts and popup windows",
		Version: Version,
		Description: `modal-runner drives a browser through Bootstrap modal dialogs, native
JavaScript prompts and popup windows, and reports each scenario as JSON and JUnit.

Examples:
  modal-runner run
  modal-runner --backend html run modal-dialog complex-dialog
  modal-runner --backend webdriver --grid-url https://hub.lambdatest.com/wd/hub run --parallel 3
  modal-runner list`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			listCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
