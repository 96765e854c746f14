package cdp

import (
	"context"
	"fmt"
	"strings"

	cdptypes "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/devicelab-dev/modal-runner/pkg/core"
)

// Functions evaluated with the element bound to this.
const (
	textContentJS = `function() { return this.textContent || ""; }`

	innerTextJS = `function() { return this.innerText || ""; }`

	valueJS = `function() {
	if (this.isContentEditable) return this.textContent || "";
	return this.value === undefined || this.value === null ? "" : String(this.value);
}`

	visibleJS = `function() {
	if (!this.isConnected) return false;
	const s = window.getComputedStyle(this);
	if (s.display === "none" || s.visibility === "hidden") return false;
	const r = this.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
}`

	// Returns "" when the element accepts input, otherwise the reason.
	stateJS = `function(editing) {
	if (!this.isConnected) return "detached";
	const s = window.getComputedStyle(this);
	const r = this.getBoundingClientRect();
	if (s.display === "none" || s.visibility === "hidden" || r.width === 0 || r.height === 0) return "not visible";
	if (this.disabled) return "disabled";
	if (editing) {
		if (this.readOnly) return "read-only";
		const tag = this.tagName.toLowerCase();
		if (tag !== "input" && tag !== "textarea" && !this.isContentEditable) return "not editable";
	}
	return "";
}`

	// Returns "" when a click at the element's center reaches it, otherwise
	// a description of the element on top.
	hitTestJS = `function() {
	this.scrollIntoView({block: "center", inline: "center"});
	const r = this.getBoundingClientRect();
	const top = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	if (!top || top === this || this.contains(top)) return "";
	let d = top.tagName.toLowerCase();
	if (top.id) {
		d += "#" + top.id;
	} else if (typeof top.className === "string" && top.className.trim() !== "") {
		d += "." + top.className.trim().split(/\s+/).join(".");
	}
	return d;
}`

	clearJS = `function() {
	if (this.isContentEditable) {
		this.textContent = "";
	} else {
		this.value = "";
	}
	this.dispatchEvent(new Event("input", {bubbles: true}));
	this.dispatchEvent(new Event("change", {bubbles: true}));
	return true;
}`

	focusEndJS = `function() {
	this.focus();
	if (typeof this.setSelectionRange === "function" && typeof this.value === "string") {
		try { this.setSelectionRange(this.value.length, this.value.length); } catch (e) {}
	}
	return true;
}`
)

type element struct {
	session *Session
	node    *cdptypes.Node
}

// Find implements core.Element.
func (e *element) Find(ctx context.Context, loc core.Locator) (core.Element, error) {
	nodes, err := e.session.query(ctx, e.node, loc)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, core.NotFound(loc)
	}
	return &element{session: e.session, node: nodes[0]}, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.session.call(ctx, e.node, innerTextJS, &text); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	var v string
	if err := e.session.call(ctx, e.node, valueJS, &v); err != nil {
		return "", err
	}
	return v, nil
}

func (e *element) Displayed(ctx context.Context) (bool, error) {
	var shown bool
	if err := e.session.call(ctx, e.node, visibleJS, &shown); err != nil {
		return false, err
	}
	return shown, nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.interactable(ctx, true); err != nil {
		return err
	}
	var ok bool
	return e.session.call(ctx, e.node, clearJS, &ok)
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.interactable(ctx, true); err != nil {
		return err
	}
	var ok bool
	if err := e.session.call(ctx, e.node, focusEndJS, &ok); err != nil {
		return err
	}
	return e.session.run(ctx, chromedp.KeyEvent(text))
}

// Click dispatches a mouse click at the element's center. When the click
// opens a JavaScript dialog the page blocks until the dialog is handled,
// so Click returns as soon as the dialog is reported.
func (e *element) Click(ctx context.Context) error {
	if err := e.interactable(ctx, false); err != nil {
		return err
	}

	var blocker string
	if err := e.session.call(ctx, e.node, hitTestJS, &blocker); err != nil {
		return err
	}
	if blocker != "" {
		return core.ErrClickIntercepted.
			WithMessage(fmt.Sprintf("click intercepted by %s", blocker)).
			WithDetails(map[string]interface{}{"receiver": blocker})
	}

	t := e.session.tab()
	select {
	case <-t.opened:
	default:
	}

	done := make(chan error, 1)
	go func() {
		done <- wrap(chromedp.Run(t.ctx, chromedp.MouseClickNode(e.node)))
	}()

	select {
	case err := <-done:
		return err
	case <-t.opened:
		return nil
	case <-ctx.Done():
		return core.ErrTimeout.WithCause(ctx.Err())
	}
}

func (e *element) interactable(ctx context.Context, editing bool) error {
	var reason string
	if err := e.session.call(ctx, e.node, stateJS, &reason, editing); err != nil {
		return err
	}
	if reason != "" {
		return core.ErrElementNotInteractable.
			WithMessage(fmt.Sprintf("element not interactable: %s", reason)).
			WithDetails(map[string]interface{}{"reason": reason})
	}
	return nil
}
