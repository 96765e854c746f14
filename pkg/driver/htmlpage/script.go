package htmlpage

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/jsengine"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// attachEngine gives w a fresh script engine for its current document and
// returns the document's inline scripts. Called with p.mu held.
func (p *Page) attachEngine(w *window) []string {
	if w.engine != nil {
		w.engine.Close()
	}
	w.engine = jsengine.New(&scriptHost{page: p, doc: w.doc})
	return inlineScripts(w.doc)
}

// inlineScripts returns the bodies of the classic scripts without a src.
func inlineScripts(doc *goquery.Document) []string {
	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		switch strings.ToLower(s.AttrOr("type", "")) {
		case "", "text/javascript", "application/javascript":
		default:
			return
		}
		if body := strings.TrimSpace(s.Text()); body != "" {
			scripts = append(scripts, body)
		}
	})
	return scripts
}

// loadScripts runs a window's inline scripts in document order.
func (p *Page) loadScripts(ctx context.Context, w *window, scripts []string) error {
	for _, src := range scripts {
		if err := p.runScript(ctx, w, src); err != nil {
			return err
		}
	}
	return nil
}

// runScript runs src on w's engine and returns once the script finishes or
// opens a dialog, whichever comes first. The script resumes when the dialog
// is closed. Script errors are logged, as a browser would.
func (p *Page) runScript(ctx context.Context, w *window, src string) error {
	p.mu.Lock()
	engine := w.engine
	p.mu.Unlock()
	if engine == nil {
		return nil
	}

	// drop a signal left over from a dialog nobody waited for
	select {
	case <-p.dialogOpened:
	default:
	}

	done := make(chan error, 1)
	go func() { done <- engine.RunScript(src) }()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("htmlpage: script in %s: %v", w.handle, err)
		}
		return nil
	case <-p.dialogOpened:
		return nil
	case <-ctx.Done():
		return core.ErrTimeout.WithCause(ctx.Err())
	}
}

// scriptHost connects an engine to the page it was created for.
type scriptHost struct {
	page *Page
	doc  *goquery.Document
}

func (h *scriptHost) Dialog(kind jsengine.DialogKind, message, defaultValue string) (bool, string) {
	p := h.page
	done := make(chan struct{})
	a := &Alert{Text: message, Kind: string(kind), Prompt: kind == jsengine.Prompt, Input: defaultValue, done: done}

	p.mu.Lock()
	if p.alert != nil {
		// Only one dialog can be open; further ones are suppressed.
		p.mu.Unlock()
		return false, ""
	}
	p.alert = a
	p.mu.Unlock()
	logger.Debug("htmlpage: %s opened: %q", kind, message)

	select {
	case p.dialogOpened <- struct{}{}:
	default:
	}

	<-done
	return a.Accepted, a.Input
}

func (h *scriptHost) OpenWindow(u string) {
	p := h.page
	p.mu.Lock()
	w, scripts := p.openWindow(u)
	p.mu.Unlock()
	if w != nil {
		_ = p.loadScripts(context.Background(), w, scripts)
	}
}

func (h *scriptHost) ElementByID(id string) jsengine.Element {
	p := h.page
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := h.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	}).First()
	if sel.Length() == 0 {
		return nil
	}
	return &scriptElement{el: &element{page: p, sel: sel}}
}

// scriptElement exposes an element's string properties to page scripts.
type scriptElement struct {
	el *element
}

func (s *scriptElement) Property(name string) (string, bool) {
	e := s.el
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	switch name {
	case "id":
		return e.sel.AttrOr("id", ""), true
	case "textContent":
		return e.sel.Text(), true
	case "innerText":
		return renderedText(e.node()), true
	case "innerHTML":
		h, _ := e.sel.Html()
		return h, true
	case "value":
		return e.value(), true
	case "className":
		return e.sel.AttrOr("class", ""), true
	case "tagName":
		return strings.ToUpper(goquery.NodeName(e.sel)), true
	}
	return "", false
}

func (s *scriptElement) SetProperty(name, value string) bool {
	e := s.el
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	switch name {
	case "textContent", "innerText":
		e.sel.SetText(value)
	case "innerHTML":
		e.sel.SetHtml(value)
	case "value":
		e.page.values[e.node()] = value
	case "className":
		e.sel.SetAttr("class", value)
	default:
		return false
	}
	return true
}
