// Package htmlpage implements core.Session over an in-memory HTML document.
//
// It understands just enough Bootstrap behaviour to run the dialog
// scenarios offline: data-toggle/data-dismiss modals, inline visibility
// styles, form values, target="_blank" links opening new windows, and
// JavaScript dialogs declared with data-alert/data-prompt or opened by the
// page's own inline scripts (see pkg/jsengine).
package htmlpage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/jsengine"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// Page is an in-memory browser session. It is safe for concurrent use, so
// tests may Mutate the document while an operation is waiting.
type Page struct {
	mu       sync.Mutex
	fixtures map[string]string
	dir      string
	poll     time.Duration

	windows    []*window
	current    int
	nextHandle int

	values    map[*html.Node]string
	alert     *Alert
	lastAlert *Alert
	clicks    []string

	// signalled when a page script opens a dialog
	dialogOpened chan struct{}
}

type window struct {
	handle string
	url    string
	doc    *goquery.Document
	engine *jsengine.Engine
}

// Alert is an open (or last handled) JavaScript dialog.
type Alert struct {
	Text     string
	Kind     string // alert, confirm or prompt
	Prompt   bool
	Input    string
	Accepted bool

	done chan struct{} // closed when a script is waiting on this dialog
}

// Option configures a Page.
type Option func(*Page)

// WithFixtures serves html for the given URLs on Navigate.
func WithFixtures(fixtures map[string]string) Option {
	return func(p *Page) {
		for u, doc := range fixtures {
			p.fixtures[u] = doc
		}
	}
}

// WithDir serves <dir>/<last path segment of the URL>.html on Navigate.
func WithDir(dir string) Option {
	return func(p *Page) { p.dir = dir }
}

// WithPollInterval sets how often WaitVisible and WaitAlert re-check.
func WithPollInterval(d time.Duration) Option {
	return func(p *Page) {
		if d > 0 {
			p.poll = d
		}
	}
}

// New creates a Page showing an empty document.
func New(opts ...Option) *Page {
	p := &Page{
		fixtures: make(map[string]string),
		poll:     core.DefaultPollInterval,
		values:   make(map[*html.Node]string),

		dialogOpened: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	p.windows = []*window{p.newWindow("about:blank", doc)}
	return p
}

// FromHTML creates a Page already showing src, with its inline scripts run.
func FromHTML(src string, opts ...Option) (*Page, error) {
	p := New(opts...)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	p.mu.Lock()
	w := p.windows[0]
	w.doc = doc
	scripts := p.attachEngine(w)
	p.mu.Unlock()

	if err := p.loadScripts(context.Background(), w, scripts); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) newWindow(u string, doc *goquery.Document) *window {
	p.nextHandle++
	return &window{
		handle: fmt.Sprintf("window-%d", p.nextHandle),
		url:    u,
		doc:    doc,
	}
}

// Navigate implements core.Navigator.
func (p *Page) Navigate(ctx context.Context, u string) error {
	src, err := p.fixture(u)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", u, err)
	}

	p.mu.Lock()
	w := p.windows[p.current]
	w.url = u
	w.doc = doc
	p.dismissLocked()
	scripts := p.attachEngine(w)
	p.mu.Unlock()

	logger.Debug("htmlpage: navigated %s to %s", w.handle, u)
	return p.loadScripts(ctx, w, scripts)
}

func (p *Page) fixture(u string) (string, error) {
	p.mu.Lock()
	src, ok := p.fixtures[u]
	dir := p.dir
	p.mu.Unlock()
	if ok {
		return src, nil
	}
	if dir == "" {
		return "", core.ErrServerUnreachable.WithMessage("no fixture for " + u)
	}

	name := fixtureName(u)
	data, err := os.ReadFile(filepath.Join(dir, name+".html")) //#nosec G304 -- fixture directory from config
	if err != nil {
		return "", core.ErrServerUnreachable.WithMessage("no fixture for " + u).WithCause(err)
	}
	return string(data), nil
}

// fixtureName maps a URL to its fixture file stem: the last non-empty path
// segment, or the host when the path is empty.
func fixtureName(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	base := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	if base == "." || base == "/" || base == "" {
		return parsed.Host
	}
	return strings.TrimSuffix(base, ".html")
}

// Maximize implements core.Maximizer. Windows have no size here.
func (p *Page) Maximize(ctx context.Context) error {
	return nil
}

// Find implements core.Session.
func (p *Page) Find(ctx context.Context, loc core.Locator) (core.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	matches, err := match(p.doc().Selection, loc)
	if err != nil {
		return nil, err
	}
	if matches.Length() == 0 {
		return nil, core.NotFound(loc)
	}
	return &element{page: p, sel: matches.First()}, nil
}

// FindAll implements core.MultiFinder.
func (p *Page) FindAll(ctx context.Context, loc core.Locator) ([]core.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	matches, err := match(p.doc().Selection, loc)
	if err != nil {
		return nil, err
	}
	found := make([]core.Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		found = append(found, &element{page: p, sel: s})
	})
	return found, nil
}

// WaitVisible implements core.Session.
func (p *Page) WaitVisible(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := p.firstVisible(loc)
		if err != nil {
			return nil, err
		}
		if el != nil {
			return el, nil
		}

		if time.Now().After(deadline) {
			return nil, core.ErrTimeout.
				WithMessage(fmt.Sprintf("%s not visible after %s", loc.Describe(), timeout))
		}
		select {
		case <-ctx.Done():
			return nil, core.ErrTimeout.WithCause(ctx.Err())
		case <-time.After(p.poll):
		}
	}
}

func (p *Page) firstVisible(loc core.Locator) (core.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	matches, err := match(p.doc().Selection, loc)
	if err != nil {
		return nil, err
	}
	var found *goquery.Selection
	matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if visible(s) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return nil, nil
	}
	return &element{page: p, sel: found}, nil
}

// Mutate applies fn to the current window's document under the page lock.
func (p *Page) Mutate(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc())
}

// HTML returns the current window's document as HTML.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.OuterHtml(p.doc().Selection)
}

// Clicks returns a description of every element clicked so far.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// LastAlert returns the most recently accepted or dismissed alert.
func (p *Page) LastAlert() *Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastAlert == nil {
		return nil
	}
	a := *p.lastAlert
	return &a
}

func (p *Page) doc() *goquery.Document {
	return p.windows[p.current].doc
}

// Alerts

// WaitAlert implements core.AlertHandler.
func (p *Page) WaitAlert(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		open := p.alert != nil
		p.mu.Unlock()
		if open {
			return nil
		}
		if time.Now().After(deadline) {
			return core.ErrTimeout.WithMessage(fmt.Sprintf("no alert after %s", timeout))
		}
		select {
		case <-ctx.Done():
			return core.ErrTimeout.WithCause(ctx.Err())
		case <-time.After(p.poll):
		}
	}
}

// AlertText implements core.AlertHandler.
func (p *Page) AlertText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alert == nil {
		return "", core.ErrNoSuchAlert
	}
	return p.alert.Text, nil
}

// SendAlertText implements core.AlertHandler.
func (p *Page) SendAlertText(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alert == nil {
		return core.ErrNoSuchAlert
	}
	if !p.alert.Prompt {
		return core.ErrElementNotInteractable.WithMessage("alert is not a prompt")
	}
	p.alert.Input = text
	return nil
}

// AcceptAlert implements core.AlertHandler.
func (p *Page) AcceptAlert(ctx context.Context) error {
	return p.closeAlert(true)
}

// DismissAlert implements core.AlertHandler.
func (p *Page) DismissAlert(ctx context.Context) error {
	return p.closeAlert(false)
}

func (p *Page) closeAlert(accept bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alert == nil {
		return core.ErrNoSuchAlert
	}
	p.alert.Accepted = accept
	p.lastAlert = p.alert
	p.alert = nil
	if p.lastAlert.done != nil {
		close(p.lastAlert.done)
	}
	return nil
}

// dismissLocked closes an open dialog without recording it, releasing any
// script blocked on it. Called with p.mu held.
func (p *Page) dismissLocked() {
	if p.alert == nil {
		return
	}
	if p.alert.done != nil {
		close(p.alert.done)
	}
	p.alert = nil
}

// Windows

// WindowHandle implements core.WindowSwitcher.
func (p *Page) WindowHandle(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windows[p.current].handle, nil
}

// WindowHandles implements core.WindowSwitcher.
func (p *Page) WindowHandles(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	handles := make([]string, len(p.windows))
	for i, w := range p.windows {
		handles[i] = w.handle
	}
	return handles, nil
}

// SwitchToWindow implements core.WindowSwitcher.
func (p *Page) SwitchToWindow(ctx context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.windows {
		if w.handle == handle {
			p.current = i
			return nil
		}
	}
	return core.ErrNoSuchWindow.WithMessage("window not found: " + handle)
}

// CurrentURL returns the URL of the current window.
func (p *Page) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windows[p.current].url
}

// Close implements core.Closer. It stops every page script; the page
// stays readable.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissLocked()
	for _, w := range p.windows {
		if w.engine != nil {
			w.engine.Close()
			w.engine = nil
		}
	}
	return nil
}

// openWindow adds a window showing u and returns it with the inline
// scripts the caller must run once p.mu is released. Called with p.mu held.
func (p *Page) openWindow(u string) (*window, []string) {
	src, ok := p.fixtures[u]
	if !ok {
		src = "<html><body></body></html>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		logger.Warn("htmlpage: popup %s: %v", u, err)
		return nil, nil
	}
	w := p.newWindow(u, doc)
	p.windows = append(p.windows, w)
	logger.Debug("htmlpage: opened %s for %s", w.handle, u)
	return w, p.attachEngine(w)
}
