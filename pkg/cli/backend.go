package cli

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/config"
	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/driver/cdp"
	"github.com/devicelab-dev/modal-runner/pkg/driver/htmlpage"
	"github.com/devicelab-dev/modal-runner/pkg/driver/webdriver"
	"github.com/devicelab-dev/modal-runner/pkg/executor"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
	"github.com/devicelab-dev/modal-runner/pkg/scenario"
)

// sessionCreateTimeout bounds browser start-up and grid session creation.
const sessionCreateTimeout = 2 * time.Minute

// backend opens sessions for one run and describes them for the report.
type backend struct {
	open    executor.SessionFactory
	browser string
	grid    string // redacted, webdriver only
}

func newBackend(cfg *config.Config) (*backend, error) {
	switch cfg.Backend {
	case config.BackendCDP:
		return cdpBackend(cfg), nil
	case config.BackendWebDriver:
		return webdriverBackend(cfg)
	case config.BackendHTML:
		return htmlBackend(cfg)
	default:
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}

func cdpBackend(cfg *config.Config) *backend {
	opts := cdp.Options{
		Headless:     cfg.Headless,
		PollInterval: cfg.Timeouts.Poll,
	}
	return &backend{
		browser: "chrome",
		open: func(ctx context.Context, name string) (core.Session, error) {
			openCtx, cancel := context.WithTimeout(ctx, sessionCreateTimeout)
			defer cancel()
			return cdp.Open(openCtx, opts)
		},
	}
}

func webdriverBackend(cfg *config.Config) (*backend, error) {
	username, accessKey := config.Credentials()
	endpoint, redacted, err := gridEndpoint(cfg.GridURL, username, accessKey)
	if err != nil {
		return nil, err
	}
	if username == "" {
		logger.Info("No %s set; connecting without grid credentials", config.EnvUsername)
	}

	return &backend{
		browser: cfg.Capabilities.BrowserName,
		grid:    redacted,
		open: func(ctx context.Context, name string) (core.Session, error) {
			caps := webdriver.Capabilities(webdriver.CapabilityOptions{
				BrowserName:    cfg.Capabilities.BrowserName,
				BrowserVersion: cfg.Capabilities.BrowserVersion,
				PlatformName:   cfg.Capabilities.PlatformName,
				Headless:       cfg.Headless,
				Username:       username,
				AccessKey:      accessKey,
				Build:          cfg.Capabilities.Build,
				Name:           name,
			})
			openCtx, cancel := context.WithTimeout(ctx, sessionCreateTimeout)
			defer cancel()
			return webdriver.Open(openCtx, endpoint, caps, webdriver.WithPollInterval(cfg.Timeouts.Poll))
		},
	}, nil
}

// gridEndpoint puts the grid credentials into the URL user info, unless the
// URL already carries some, and returns it with a credential-free copy for
// reports.
func gridEndpoint(raw, username, accessKey string) (endpoint, redacted string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("invalid grid URL %q", raw)).
			WithDetails(map[string]interface{}{"field": "gridURL"})
	}
	if u.User == nil && username != "" {
		u.User = url.UserPassword(username, accessKey)
	}
	endpoint = u.String()

	u.User = nil
	return endpoint, u.String(), nil
}

func htmlBackend(cfg *config.Config) (*backend, error) {
	opts := []htmlpage.Option{htmlpage.WithPollInterval(cfg.Timeouts.Poll)}
	if cfg.Fixtures != "" {
		opts = append(opts, htmlpage.WithDir(cfg.Fixtures))
	} else {
		fixtures, err := scenario.Fixtures(cfg.Pages)
		if err != nil {
			return nil, fmt.Errorf("load built-in fixtures: %w", err)
		}
		opts = append(opts, htmlpage.WithFixtures(fixtures))
	}

	return &backend{
		browser: "html",
		open: func(ctx context.Context, name string) (core.Session, error) {
			return htmlpage.New(opts...), nil
		},
	}, nil
}
