// Package cdp implements core.Session against a local Chrome driven over
// the DevTools protocol.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	chromedpbrowser "github.com/chromedp/cdproto/browser"
	cdptypes "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// Options configures the browser started by Open.
type Options struct {
	Headless     bool
	ExecPath     string // empty: let chromedp find Chrome
	WindowWidth  int
	WindowHeight int
	PollInterval time.Duration
}

// Session is a Chrome browser with one current tab. Popups opened by the
// page become additional windows that SwitchToWindow can attach to.
type Session struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	poll          time.Duration

	mu      sync.Mutex
	tabs    map[target.ID]*tab
	current *tab
}

// tab is an attached page target and its JavaScript dialog state.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     target.ID

	mu     sync.Mutex
	dialog *page.EventJavascriptDialogOpening
	prompt *string
	opened chan struct{}
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		options = append(options,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		// Containers on linux cannot start Chrome with its sandbox.
		options = append(options, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		options = append(options, chromedp.ExecPath(opts.ExecPath))
	}

	w, h := opts.WindowWidth, opts.WindowHeight
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	return append(options, chromedp.WindowSize(w, h))
}

// Open starts Chrome and attaches to its first tab. ctx bounds the start
// only; the browser lives until Close.
func Open(ctx context.Context, opts Options) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf),
		chromedp.WithErrorf(logger.Printf),
	)

	s := &Session{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		poll:          core.DefaultPollInterval,
		tabs:          make(map[target.ID]*tab),
	}
	if opts.PollInterval > 0 {
		s.poll = opts.PollInterval
	}

	if err := attach(ctx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, core.ErrSessionNotCreated.WithCause(err)
	}

	first := s.track(browserCtx, browserCancel)
	s.current = first
	logger.Info("cdp: browser started, tab %s", first.id)
	return s, nil
}

// attach performs the first Run on a chromedp context, which starts the
// browser or attaches the tab. That Run must not see a cancellable child
// context or the browser dies with it, so ctx is only raced against it.
func attach(ctx, chromeCtx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(chromeCtx) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// track registers an attached tab and subscribes to its dialog events.
func (s *Session) track(ctx context.Context, cancel context.CancelFunc) *tab {
	t := &tab{
		ctx:    ctx,
		cancel: cancel,
		id:     chromedp.FromContext(ctx).Target.TargetID,
		opened: make(chan struct{}, 1),
	}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			t.mu.Lock()
			t.dialog = ev
			t.prompt = nil
			t.mu.Unlock()
			select {
			case t.opened <- struct{}{}:
			default:
			}
		case *page.EventJavascriptDialogClosed:
			t.mu.Lock()
			t.dialog = nil
			t.prompt = nil
			t.mu.Unlock()
		}
	})

	s.mu.Lock()
	s.tabs[t.id] = t
	s.mu.Unlock()
	return t
}

func (s *Session) tab() *tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// run executes actions on the current tab, abandoning them when ctx ends.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	return s.runOn(ctx, s.tab().ctx, actions...)
}

func (s *Session) runOn(ctx, tabCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return core.ErrTimeout.WithCause(ctx.Err())
	}
	return wrap(err)
}

// Find implements core.Session.
func (s *Session) Find(ctx context.Context, loc core.Locator) (core.Element, error) {
	nodes, err := s.query(ctx, nil, loc)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, core.NotFound(loc)
	}
	return &element{session: s, node: nodes[0]}, nil
}

// FindAll implements core.MultiFinder.
func (s *Session) FindAll(ctx context.Context, loc core.Locator) ([]core.Element, error) {
	nodes, err := s.query(ctx, nil, loc)
	if err != nil {
		return nil, err
	}
	found := make([]core.Element, 0, len(nodes))
	for _, n := range nodes {
		found = append(found, &element{session: s, node: n})
	}
	return found, nil
}

// WaitVisible implements core.Session.
func (s *Session) WaitVisible(ctx context.Context, loc core.Locator, timeout time.Duration) (core.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		nodes, err := s.query(ctx, nil, loc)
		if err != nil && !errors.Is(err, core.ErrElementNotFound) {
			return nil, err
		}
		for _, n := range nodes {
			el := &element{session: s, node: n}
			shown, err := el.Displayed(ctx)
			if err == nil && shown {
				return el, nil
			}
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

// query returns the nodes matching loc, searching under from when it is
// set and the whole document otherwise. Zero matches is not an error.
func (s *Session) query(ctx context.Context, from *cdptypes.Node, loc core.Locator) ([]*cdptypes.Node, error) {
	var nodes []*cdptypes.Node

	css, ok := loc.CSS()
	if !ok {
		if from != nil {
			return nil, core.ErrInvalidConfig.
				WithMessage("cdp backend cannot evaluate XPath relative to an element: " + loc.Describe())
		}
		if err := s.run(ctx, chromedp.Nodes(loc.Value, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
			return nil, err
		}
		return nodes, nil
	}

	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if from != nil {
		opts = append(opts, chromedp.FromNode(from))
	}
	if err := s.run(ctx, chromedp.Nodes(css, &nodes, opts...)); err != nil {
		return nil, err
	}
	if loc.Strategy != core.StrategyButtonText {
		return nodes, nil
	}

	matched := nodes[:0]
	for _, n := range nodes {
		var text string
		if err := s.call(ctx, n, textContentJS, &text); err != nil {
			continue
		}
		if loc.MatchesText(text) {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

// call runs a JavaScript function with the node bound to this.
func (s *Session) call(ctx context.Context, n *cdptypes.Node, fn string, res interface{}, args ...interface{}) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.CallFunctionOnNode(ctx, n, fn, res, args...)
	}))
}

// Navigate implements core.Navigator.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, core.ErrTimeout) {
			return err
		}
		return core.ErrServerUnreachable.WithMessage("could not load " + url).WithCause(err)
	}
	return nil
}

// Maximize implements core.Maximizer.
func (s *Session) Maximize(ctx context.Context) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := chromedpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		return chromedpbrowser.SetWindowBounds(windowID, &chromedpbrowser.Bounds{
			WindowState: chromedpbrowser.WindowStateMaximized,
		}).Do(ctx)
	}))
}

// WaitAlert implements core.AlertHandler.
func (s *Session) WaitAlert(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	t := s.tab()
	for {
		t.mu.Lock()
		open := t.dialog != nil
		t.mu.Unlock()
		if open {
			return nil
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

func (t *tab) openDialog() (*page.EventJavascriptDialogOpening, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialog == nil {
		return nil, core.ErrNoSuchAlert
	}
	return t.dialog, nil
}

// AlertText implements core.AlertHandler.
func (s *Session) AlertText(ctx context.Context) (string, error) {
	d, err := s.tab().openDialog()
	if err != nil {
		return "", err
	}
	return d.Message, nil
}

// SendAlertText implements core.AlertHandler. The text is submitted when
// the prompt is accepted.
func (s *Session) SendAlertText(ctx context.Context, text string) error {
	t := s.tab()
	d, err := t.openDialog()
	if err != nil {
		return err
	}
	if d.Type != page.DialogTypePrompt {
		return core.ErrElementNotInteractable.WithMessage(fmt.Sprintf("%s dialog does not accept text", d.Type))
	}
	t.mu.Lock()
	t.prompt = &text
	t.mu.Unlock()
	return nil
}

// AcceptAlert implements core.AlertHandler.
func (s *Session) AcceptAlert(ctx context.Context) error {
	return s.closeDialog(ctx, true)
}

// DismissAlert implements core.AlertHandler.
func (s *Session) DismissAlert(ctx context.Context) error {
	return s.closeDialog(ctx, false)
}

func (s *Session) closeDialog(ctx context.Context, accept bool) error {
	t := s.tab()
	if _, err := t.openDialog(); err != nil {
		return err
	}

	handle := page.HandleJavaScriptDialog(accept)
	t.mu.Lock()
	if accept && t.prompt != nil {
		handle = handle.WithPromptText(*t.prompt)
	}
	t.mu.Unlock()

	if err := s.runOn(ctx, t.ctx, handle); err != nil {
		return err
	}
	t.mu.Lock()
	t.dialog = nil
	t.prompt = nil
	t.mu.Unlock()
	return nil
}

// WindowHandle implements core.WindowSwitcher.
func (s *Session) WindowHandle(ctx context.Context) (string, error) {
	return string(s.tab().id), nil
}

// WindowHandles implements core.WindowSwitcher. Handles are the target ids
// of the browser's page targets.
func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	infos, err := s.pages(ctx)
	if err != nil {
		return nil, err
	}
	handles := make([]string, 0, len(infos))
	for _, info := range infos {
		handles = append(handles, string(info.TargetID))
	}
	return handles, nil
}

func (s *Session) pages(ctx context.Context) ([]*target.Info, error) {
	var infos []*target.Info
	err := s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		infos, err = chromedp.Targets(c)
		return err
	}))
	if err != nil {
		return nil, err
	}

	pages := infos[:0]
	for _, info := range infos {
		if info.Type == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

// SwitchToWindow implements core.WindowSwitcher.
func (s *Session) SwitchToWindow(ctx context.Context, handle string) error {
	id := target.ID(handle)

	s.mu.Lock()
	known, ok := s.tabs[id]
	s.mu.Unlock()
	if ok {
		s.mu.Lock()
		s.current = known
		s.mu.Unlock()
		return nil
	}

	infos, err := s.pages(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, info := range infos {
		if info.TargetID == id {
			found = true
			break
		}
	}
	if !found {
		return core.ErrNoSuchWindow.WithMessage("window not found: " + handle)
	}

	tabCtx, cancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
	if err := attach(ctx, tabCtx); err != nil {
		cancel()
		return wrap(err)
	}
	t := s.track(tabCtx, cancel)
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	logger.Debug("cdp: switched to window %s", handle)
	return nil
}

// Close implements core.Closer. It stops the browser process.
func (s *Session) Close() error {
	s.mu.Lock()
	for id, t := range s.tabs {
		if t.ctx != s.browserCtx {
			t.cancel()
		}
		delete(s.tabs, id)
	}
	s.current = nil
	s.mu.Unlock()

	s.browserCancel()
	s.allocCancel()
	return nil
}

// wrap maps chromedp and DevTools errors to the core taxonomy.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var ee *core.ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.ErrTimeout.WithCause(err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Could not find node"),
		strings.Contains(msg, "Node is detached"),
		strings.Contains(msg, "Cannot find context with specified id"):
		return core.ErrElementNotFound.WithMessage("element is no longer attached").WithCause(err)
	case strings.Contains(msg, "No dialog is showing"):
		return core.ErrNoSuchAlert.WithCause(err)
	}
	return fmt.Errorf("cdp: %w", err)
}
