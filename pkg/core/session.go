// Package core provides the browser capability interfaces, locators and the
// error taxonomy shared by every backend of modal-runner.
package core

import (
	"context"
	"time"
)

// Session is the capability a browser backend must provide.
// Implementations: WebDriver (remote grid), CDP (local Chrome), HTML (in-memory).
// The session is owned by whoever created it; consumers borrow it and never close it.
type Session interface {
	// Find returns the first element in the document matching loc.
	// Returns ErrElementNotFound when nothing matches.
	Find(ctx context.Context, loc Locator) (Element, error)

	// WaitVisible polls until an element matching loc is present and
	// displayed, or returns ErrTimeout once timeout has elapsed.
	WaitVisible(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)
}

// Element is a handle to one element of the live page.
type Element interface {
	// Find returns the first descendant of this element matching loc.
	Find(ctx context.Context, loc Locator) (Element, error)

	// Text returns the visible text content.
	Text(ctx context.Context) (string, error)

	// Value returns the current value of a form control.
	Value(ctx context.Context) (string, error)

	// Displayed reports whether the element is rendered and visible.
	Displayed(ctx context.Context) (bool, error)

	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Click(ctx context.Context) error
}

// Navigator is implemented by sessions that can load a URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// MultiFinder is implemented by sessions that can return every match of a
// locator in document order. An empty result is not an error.
type MultiFinder interface {
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
}

// Maximizer is implemented by sessions whose window can be maximized.
type Maximizer interface {
	Maximize(ctx context.Context) error
}

// AlertHandler is implemented by sessions that expose native browser
// alerts, confirms and prompts.
type AlertHandler interface {
	WaitAlert(ctx context.Context, timeout time.Duration) error
	AlertText(ctx context.Context) (string, error)
	SendAlertText(ctx context.Context, text string) error
	AcceptAlert(ctx context.Context) error
	DismissAlert(ctx context.Context) error
}

// WindowSwitcher is implemented by sessions that track multiple windows.
type WindowSwitcher interface {
	WindowHandle(ctx context.Context) (string, error)
	WindowHandles(ctx context.Context) ([]string, error)
	SwitchToWindow(ctx context.Context, handle string) error
}

// Closer releases the underlying browser. Only the harness that opened a
// session calls it.
type Closer interface {
	Close() error
}

// DefaultPollInterval is how often WaitVisible re-checks the page.
const DefaultPollInterval = 100 * time.Millisecond

// DefaultWaitTimeout is the wait budget for a container to become visible.
const DefaultWaitTimeout = 30 * time.Second
