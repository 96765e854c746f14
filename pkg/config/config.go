// Package config handles configuration for modal-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/scenario"
)

// Backend names.
const (
	BackendCDP       = "cdp"
	BackendWebDriver = "webdriver"
	BackendHTML      = "html"
)

// Grid credentials are only ever read from the environment.
const (
	EnvUsername  = "LT_USERNAME"
	EnvAccessKey = "LT_ACCESSKEY"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Browser backend
	Backend  string `yaml:"backend"`  // cdp, webdriver or html
	GridURL  string `yaml:"gridURL"`  // WebDriver endpoint for the webdriver backend
	Headless bool   `yaml:"headless"` // cdp and local chromedriver only

	Timeouts     Timeouts     `yaml:"timeouts"`
	Capabilities Capabilities `yaml:"capabilities"`

	// Scenario settings
	Pages    scenario.Pages `yaml:"pages"`    // Page URLs, public demo pages by default
	Fixtures string         `yaml:"fixtures"` // HTML fixture directory for the html backend

	// Execution settings
	Parallelism int    `yaml:"parallelism"`
	OutputDir   string `yaml:"outputDir"`
}

// Timeouts holds wait budgets.
type Timeouts struct {
	Element time.Duration `yaml:"element"` // container visibility wait
	Poll    time.Duration `yaml:"poll"`    // re-check interval while waiting
}

// Capabilities describes the browser requested from a grid.
type Capabilities struct {
	BrowserName    string `yaml:"browserName"`
	BrowserVersion string `yaml:"browserVersion"`
	PlatformName   string `yaml:"platformName"`
	Build          string `yaml:"build"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("parse %s", path)).
			WithCause(err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendCDP
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.Timeouts.Element <= 0 {
		c.Timeouts.Element = core.DefaultWaitTimeout
	}
	if c.Timeouts.Poll <= 0 {
		c.Timeouts.Poll = core.DefaultPollInterval
	}
	if c.Capabilities.BrowserName == "" {
		c.Capabilities.BrowserName = "chrome"
	}
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	c.Pages = c.Pages.WithDefaults()
}

// Validate checks that the configuration can drive the selected backend.
// Call it after command-line overrides have been applied.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendCDP, BackendHTML:
	case BackendWebDriver:
		if c.GridURL == "" {
			return core.ErrMissingRequired.
				WithMessage("gridURL is required for the webdriver backend").
				WithDetails(map[string]interface{}{"field": "gridURL"})
		}
	default:
		return core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("unknown backend %q (want cdp, webdriver or html)", c.Backend)).
			WithDetails(map[string]interface{}{"field": "backend"})
	}

	if c.Timeouts.Poll > c.Timeouts.Element {
		return core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("timeouts.poll (%s) exceeds timeouts.element (%s)", c.Timeouts.Poll, c.Timeouts.Element))
	}
	if c.Fixtures != "" {
		if fi, err := os.Stat(c.Fixtures); err != nil || !fi.IsDir() {
			return core.ErrInvalidConfig.
				WithMessage(fmt.Sprintf("fixtures directory %q not found", c.Fixtures)).
				WithDetails(map[string]interface{}{"field": "fixtures"})
		}
	}
	return nil
}

// Credentials returns the grid username and access key from the
// environment. Both are empty for local backends.
func Credentials() (username, accessKey string) {
	return os.Getenv(EnvUsername), os.Getenv(EnvAccessKey)
}
