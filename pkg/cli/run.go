package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/modal-runner/pkg/config"
	"github.com/devicelab-dev/modal-runner/pkg/executor"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
	"github.com/devicelab-dev/modal-runner/pkg/report"
	"github.com/devicelab-dev/modal-runner/pkg/scenario"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios (all of them when none are named)",
	ArgsUsage: "[scenario...]",
	Description: `Run one or more scenarios. Each scenario gets its own browser session.

Reports are generated in the output directory:
  - Default: <home>/reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Grid credentials are read from LT_USERNAME and LT_ACCESSKEY.

Examples:
  modal-runner run
  modal-runner run prompt-alert popup-window
  modal-runner --backend html run --fixtures ./fixtures
  modal-runner run --parallel 3 --stop-on-fail --output ./out --flatten`,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run up to N scenarios at once, each on its own session",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining scenarios after the first failure",
		},
		&cli.StringFlag{
			Name:  "fixtures",
			Usage: "Directory of HTML fixtures for the html backend",
		},
	},
	Action: runScenarios,
}

// RunConfig is the resolved configuration of one run.
type RunConfig struct {
	Workspace  *config.Config
	Scenarios  []string
	OutputDir  string
	LogFile    string
	StopOnFail bool
	Verbose    bool
}

func runScenarios(c *cli.Context) error {
	cfg, err := loadWorkspaceConfig(c)
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(outputBase(c, cfg), c.Bool("flatten"))
	if err != nil {
		return err
	}

	return executeRun(c.Context, &RunConfig{
		Workspace:  cfg,
		Scenarios:  c.Args().Slice(),
		OutputDir:  outputDir,
		LogFile:    c.String("log-file"),
		StopOnFail: c.Bool("stop-on-fail"),
		Verbose:    c.Bool("verbose"),
	})
}

// loadWorkspaceConfig reads config.yaml and applies command-line overrides.
// Flags win over the file.
func loadWorkspaceConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("grid-url") {
		cfg.GridURL = c.String("grid-url")
	}
	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}
	if c.IsSet("parallel") {
		cfg.Parallelism = c.Int("parallel")
	}
	if c.IsSet("fixtures") {
		cfg.Fixtures = c.String("fixtures")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func outputBase(c *cli.Context, cfg *config.Config) string {
	if c.IsSet("output") {
		return c.String("output")
	}
	return cfg.OutputDir
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func executeRun(parent context.Context, cfg *RunConfig) error {
	ws := cfg.Workspace

	scenarios, err := scenario.Default().Select(cfg.Scenarios)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfg.OutputDir, "modal-runner.log")
	}
	if err := logger.Init(logPath); err != nil {
		fmt.Fprintf(stdout, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	logger.SetVerbose(cfg.Verbose)

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Backend: %s", ws.Backend)

	b, err := newBackend(ws)
	if err != nil {
		logger.Error("Backend setup failed: %v", err)
		return err
	}

	// Ctrl+C stops new scenarios from starting; running ones see a cancelled context.
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBanner(ws, len(scenarios))

	runner := executor.New(b.open, executor.RunnerConfig{
		OutputDir:   cfg.OutputDir,
		Parallelism: ws.Parallelism,
		StopOnFail:  cfg.StopOnFail,
		Env: scenario.Env{
			Pages:   ws.Pages,
			Timeout: ws.Timeouts.Element,
		},
		RunnerVersion:   Version,
		Backend:         ws.Backend,
		Browser:         b.browser,
		Grid:            b.grid,
		OnScenarioStart: onScenarioStart,
		OnScenarioEnd:   onScenarioEnd,
	})

	result, err := runner.Run(ctx, scenarios)
	if err != nil {
		logger.Error("Run failed: %v", err)
		return err
	}

	printSummary(result)

	fmt.Fprintln(stdout, "  Reports:")
	fmt.Fprintf(stdout, "    JSON:   %s\n", filepath.Join(cfg.OutputDir, "report.json"))
	fmt.Fprintf(stdout, "    JUnit:  %s\n", filepath.Join(cfg.OutputDir, "junit-report.xml"))
	fmt.Fprintln(stdout)

	// Exit with code 1 if any scenario did not pass (summary already printed)
	if result.Status != report.StatusPassed {
		return cli.Exit("", 1)
	}
	return nil
}
