package webdriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// Session adapts a connected Client to core.Session and the optional
// navigator, alert and window capabilities.
type Session struct {
	client *Client
	poll   time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithPollInterval sets how often WaitVisible re-queries the server.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.poll = d
		}
	}
}

// Open connects to serverURL and returns a ready session. Implicit waits
// are disabled so lookups fail fast and WaitVisible owns all waiting.
func Open(ctx context.Context, serverURL string, capabilities map[string]interface{}, opts ...Option) (*Session, error) {
	client := NewClient(serverURL)
	if err := client.Connect(ctx, capabilities); err != nil {
		return nil, err
	}
	if err := client.SetImplicitWait(ctx, 0); err != nil {
		logger.Warn("webdriver: could not disable implicit wait: %v", err)
	}
	return NewSession(client, opts...), nil
}

// NewSession wraps an already-connected client.
func NewSession(client *Client, opts ...Option) *Session {
	s := &Session{client: client, poll: core.DefaultPollInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying protocol client.
func (s *Session) Client() *Client {
	return s.client
}

// Find implements core.Session.
func (s *Session) Find(ctx context.Context, loc core.Locator) (core.Element, error) {
	using, value := strategy(loc, false)
	id, err := s.client.FindElement(ctx, using, value)
	if err != nil {
		return nil, notFound(loc, err)
	}
	return &element{session: s, id: id}, nil
}

// FindAll implements core.MultiFinder.
func (s *Session) FindAll(ctx context.Context, loc core.Locator) ([]core.Element, error) {
	using, value := strategy(loc, false)
	ids, err := s.client.FindElements(ctx, using, value)
	if err != nil {
		return nil, err
	}
	found := make([]core.Element, 0, len(ids))
	for _, id := range ids {
		found = append(found, &element{session: s, id: id})
	}
	return found, nil
}

// WaitVisible implements core.Session.
func (s *Session) WaitVisible(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	using, value := strategy(loc, false)
	deadline := time.Now().Add(timeout)

	for {
		id, err := s.firstDisplayed(ctx, using, value)
		if err != nil {
			return nil, err
		}
		if id != "" {
			return &element{session: s, id: id}, nil
		}

		if time.Now().After(deadline) {
			return nil, core.ErrTimeout.
				WithMessage(fmt.Sprintf("%s not visible after %s", loc.Describe(), timeout))
		}
		select {
		case <-ctx.Done():
			return nil, core.ErrTimeout.WithCause(ctx.Err())
		case <-time.After(s.poll):
		}
	}
}

// firstDisplayed returns the id of the first displayed match, or "" when
// none is displayed yet. Elements that go stale between the two calls are
// treated as not displayed.
func (s *Session) firstDisplayed(ctx context.Context, using, value string) (string, error) {
	ids, err := s.client.FindElements(ctx, using, value)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		shown, err := s.client.IsElementDisplayed(ctx, id)
		if errors.Is(err, core.ErrElementNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if shown {
			return id, nil
		}
	}
	return "", nil
}

// Navigate implements core.Navigator.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.client.Navigate(ctx, url)
}

// Maximize implements core.Maximizer.
func (s *Session) Maximize(ctx context.Context) error {
	return s.client.MaximizeWindow(ctx)
}

// WaitAlert implements core.AlertHandler.
func (s *Session) WaitAlert(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		_, err := s.client.GetAlertText(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrNoSuchAlert) {
			return err
		}
		if time.Now().After(deadline) {
			return core.ErrTimeout.WithMessage(fmt.Sprintf("no alert after %s", timeout))
		}
		select {
		case <-ctx.Done():
			return core.ErrTimeout.WithCause(ctx.Err())
		case <-time.After(s.poll):
		}
	}
}

// AlertText implements core.AlertHandler.
func (s *Session) AlertText(ctx context.Context) (string, error) {
	return s.client.GetAlertText(ctx)
}

// SendAlertText implements core.AlertHandler.
func (s *Session) SendAlertText(ctx context.Context, text string) error {
	return s.client.SendAlertText(ctx, text)
}

// AcceptAlert implements core.AlertHandler.
func (s *Session) AcceptAlert(ctx context.Context) error {
	return s.client.AcceptAlert(ctx)
}

// DismissAlert implements core.AlertHandler.
func (s *Session) DismissAlert(ctx context.Context) error {
	return s.client.DismissAlert(ctx)
}

// WindowHandle implements core.WindowSwitcher.
func (s *Session) WindowHandle(ctx context.Context) (string, error) {
	return s.client.GetWindowHandle(ctx)
}

// WindowHandles implements core.WindowSwitcher.
func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	return s.client.GetWindowHandles(ctx)
}

// SwitchToWindow implements core.WindowSwitcher.
func (s *Session) SwitchToWindow(ctx context.Context, handle string) error {
	return s.client.SwitchToWindow(ctx, handle)
}

// Close implements core.Closer by deleting the remote session.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type element struct {
	session *Session
	id      string
}

// Find implements core.Element.
func (e *element) Find(ctx context.Context, loc core.Locator) (core.Element, error) {
	using, value := strategy(loc, true)
	id, err := e.session.client.FindElementFrom(ctx, e.id, using, value)
	if err != nil {
		return nil, notFound(loc, err)
	}
	return &element{session: e.session, id: id}, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.session.client.GetElementText(ctx, e.id)
}

func (e *element) Value(ctx context.Context) (string, error) {
	return e.session.client.GetElementProperty(ctx, e.id, "value")
}

func (e *element) Displayed(ctx context.Context) (bool, error) {
	return e.session.client.IsElementDisplayed(ctx, e.id)
}

func (e *element) Clear(ctx context.Context) error {
	return e.session.client.ClearElement(ctx, e.id)
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return e.session.client.SendKeysToElement(ctx, e.id, text)
}

func (e *element) Click(ctx context.Context) error {
	return e.session.client.ClickElement(ctx, e.id)
}

// strategy maps a locator to a W3C "using"/"value" pair. Text predicates
// and raw XPath go through XPath; everything else through CSS, which the
// server already scopes to the element's subtree.
func strategy(loc core.Locator, relative bool) (string, string) {
	switch loc.Strategy {
	case core.StrategyButtonText, core.StrategyXPath:
		return usingXPath, loc.XPath(relative)
	}
	css, _ := loc.CSS()
	return usingCSS, css
}

// notFound names the locator in element-not-found errors and passes every
// other error through unchanged.
func notFound(loc core.Locator, err error) error {
	if errors.Is(err, core.ErrElementNotFound) {
		return core.NotFound(loc).WithCause(err)
	}
	return err
}
