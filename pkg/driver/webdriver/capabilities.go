package webdriver

import "strings"

// CapabilityOptions describes the browser a session should run.
type CapabilityOptions struct {
	BrowserName    string
	BrowserVersion string
	PlatformName   string
	Headless       bool

	// LambdaTest grid options; set only when running on the grid.
	Username  string
	AccessKey string
	Build     string
	Name      string
}

// Capabilities builds the alwaysMatch capability map for a new session.
func Capabilities(opts CapabilityOptions) map[string]interface{} {
	browser := opts.BrowserName
	if browser == "" {
		browser = "chrome"
	}
	caps := map[string]interface{}{
		"browserName": browser,
	}
	if opts.BrowserVersion != "" {
		caps["browserVersion"] = opts.BrowserVersion
	}

	if opts.Headless && strings.EqualFold(browser, "chrome") {
		caps["goog:chromeOptions"] = map[string]interface{}{
			"args": []string{"--headless=new", "--window-size=1920,1080"},
		}
	}

	if opts.Username != "" {
		lt := map[string]interface{}{
			"user":             opts.Username,
			"accessKey":        opts.AccessKey,
			"seCdp":            true,
			"selenium_version": "4.0.0",
		}
		if opts.Build != "" {
			lt["build"] = opts.Build
		}
		if opts.Name != "" {
			lt["name"] = opts.Name
		}
		if opts.PlatformName != "" {
			lt["platformName"] = opts.PlatformName
		}
		caps["LT:Options"] = lt
	} else if opts.PlatformName != "" {
		caps["platformName"] = opts.PlatformName
	}

	return caps
}
