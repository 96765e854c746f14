package htmlpage

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

// element is a single node of the page. All methods take the page lock.
type element struct {
	page *Page
	sel  *goquery.Selection
}

func (e *element) node() *html.Node {
	return e.sel.Nodes[0]
}

// Find implements core.Element. Only descendants are searched.
func (e *element) Find(ctx context.Context, loc core.Locator) (core.Element, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	matches, err := match(e.sel, loc)
	if err != nil {
		return nil, err
	}
	if matches.Length() == 0 {
		return nil, core.NotFound(loc)
	}
	return &element{page: e.page, sel: matches.First()}, nil
}

// Text implements core.Element. Hidden descendants contribute nothing.
func (e *element) Text(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	if !visible(e.sel) {
		return "", nil
	}
	return renderedText(e.node()), nil
}

// Value implements core.Element.
func (e *element) Value(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.value(), nil
}

func (e *element) value() string {
	if v, ok := e.page.values[e.node()]; ok {
		return v
	}
	if goquery.NodeName(e.sel) == "textarea" {
		return e.sel.Text()
	}
	return e.sel.AttrOr("value", "")
}

// Displayed implements core.Element.
func (e *element) Displayed(ctx context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return visible(e.sel), nil
}

// Clear implements core.Element.
func (e *element) Clear(ctx context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	if err := e.editable(); err != nil {
		return err
	}
	e.page.values[e.node()] = ""
	return nil
}

// SendKeys implements core.Element. Text is appended to the current value.
func (e *element) SendKeys(ctx context.Context, text string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	if err := e.editable(); err != nil {
		return err
	}
	e.page.values[e.node()] = e.value() + text
	return nil
}

// Click implements core.Element. An onclick handler runs until it finishes
// or opens a dialog.
func (e *element) Click(ctx context.Context) error {
	p := e.page
	p.mu.Lock()
	if p.alert != nil {
		text := p.alert.Text
		p.mu.Unlock()
		return core.ErrElementNotInteractable.WithMessage("unexpected alert open: " + text)
	}
	if err := e.interactable(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.clicks = append(p.clicks, describe(e.sel))
	logger.Debug("htmlpage: click %s", describe(e.sel))
	popup, popupScripts := e.clickEffects()
	handler := strings.TrimSpace(e.sel.AttrOr("onclick", ""))
	current := p.windows[p.current]
	p.mu.Unlock()

	if handler != "" {
		if err := p.runScript(ctx, current, handler); err != nil {
			return err
		}
	}
	if popup != nil {
		return p.loadScripts(ctx, popup, popupScripts)
	}
	return nil
}

func (e *element) interactable() error {
	if !visible(e.sel) {
		return core.ErrElementNotInteractable.WithMessage(describe(e.sel) + " is not visible")
	}
	if _, disabled := e.sel.Attr("disabled"); disabled {
		return core.ErrElementNotInteractable.WithMessage(describe(e.sel) + " is disabled")
	}
	return nil
}

func (e *element) editable() error {
	if err := e.interactable(); err != nil {
		return err
	}
	if _, ro := e.sel.Attr("readonly"); ro {
		return core.ErrElementNotInteractable.WithMessage(describe(e.sel) + " is read-only")
	}
	switch goquery.NodeName(e.sel) {
	case "input", "textarea":
		return nil
	}
	if e.sel.AttrOr("contenteditable", "false") != "false" {
		return nil
	}
	return core.ErrElementNotInteractable.WithMessage(describe(e.sel) + " does not accept text")
}

// clickEffects emulates the handful of behaviours the fixtures rely on.
// A link opening a new window returns it with its pending scripts.
func (e *element) clickEffects() (*window, []string) {
	s := e.sel
	doc := e.page.doc()

	if toggle := dataAttr(s, "toggle"); toggle == "modal" {
		if target := dataAttr(s, "target"); target != "" {
			showModal(doc.Find(target).First())
		}
	}
	if dataAttr(s, "dismiss") == "modal" {
		hideModal(s.Closest(".modal"))
	}
	if text, ok := s.Attr("data-alert"); ok {
		e.page.alert = &Alert{Text: text, Kind: "alert"}
	}
	if text, ok := s.Attr("data-prompt"); ok {
		e.page.alert = &Alert{Text: text, Kind: "prompt", Prompt: true}
	}
	if goquery.NodeName(s) == "a" && s.AttrOr("target", "") == "_blank" {
		return e.page.openWindow(s.AttrOr("href", "about:blank"))
	}
	return nil, nil
}

// dataAttr reads a Bootstrap data attribute in either the v4 (data-x) or
// v5 (data-bs-x) spelling.
func dataAttr(s *goquery.Selection, name string) string {
	if v, ok := s.Attr("data-" + name); ok {
		return v
	}
	return s.AttrOr("data-bs-"+name, "")
}

func showModal(s *goquery.Selection) {
	if s.Length() == 0 {
		return
	}
	s.AddClass("show")
	s.SetAttr("style", "display: block;")
	s.RemoveAttr("aria-hidden")
}

func hideModal(s *goquery.Selection) {
	if s.Length() == 0 {
		return
	}
	s.RemoveClass("show")
	s.SetAttr("style", "display: none;")
	s.SetAttr("aria-hidden", "true")
}

// match returns the descendants of root matching loc, in document order.
func match(root *goquery.Selection, loc core.Locator) (*goquery.Selection, error) {
	css, ok := loc.CSS()
	if !ok {
		return nil, core.ErrInvalidConfig.WithMessage(
			fmt.Sprintf("htmlpage: locator strategy %q is not supported", loc.Strategy))
	}
	return root.Find(css).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return loc.MatchesText(s.Text())
	}), nil
}

// visible reports whether s and all of its ancestors are rendered.
func visible(s *goquery.Selection) bool {
	for cur := s; cur.Length() > 0; cur = cur.Parent() {
		if hidden(cur) {
			return false
		}
	}
	return true
}

func hidden(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "head", "script", "style", "template", "title", "meta", "link", "noscript":
		return true
	case "input":
		if strings.EqualFold(s.AttrOr("type", ""), "hidden") {
			return true
		}
	}
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}
	// Bootstrap keeps closed modals in the DOM without the "show" class.
	if s.HasClass("modal") && !s.HasClass("show") {
		return true
	}
	return false
}

func describe(s *goquery.Selection) string {
	name := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok {
		return name + "#" + id
	}
	if text := core.NormalizeSpace(s.Text()); text != "" && len(text) <= 40 {
		return fmt.Sprintf("%s[%q]", name, text)
	}
	return name
}
