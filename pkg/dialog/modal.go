// Package dialog provides page-object access to Bootstrap-style modal
// dialogs whose body carries a recipient field, a message field and
// "Send message" / "Close" buttons.
package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

const (
	recipientFieldID = "recipient-name"
	messageFieldID   = "message-text"
	submitLabel      = "Send message"
	dismissLabel     = "Close"
)

// DefaultContainer matches the first element classified as a modal dialog.
var DefaultContainer = core.ByClassName("modal-dialog")

// bodyRegion is matched on the exact class attribute, so "modal-body
// scrollable" is not a body region.
var bodyRegion = core.ByCSS(`div[class="modal-body"]`)

// Modal reads and drives one modal dialog. It holds no page state: every
// call re-resolves the container, the body region and the target element,
// so it stays correct when the dialog's DOM is torn down and rebuilt.
type Modal struct {
	session   core.Session
	container core.Locator
	timeout   time.Duration
}

// Option configures a Modal.
type Option func(*Modal)

// WithContainer targets a specific dialog instead of the first one.
func WithContainer(loc core.Locator) Option {
	return func(m *Modal) { m.container = loc }
}

// WithTimeout overrides how long to wait for the container to become visible.
func WithTimeout(d time.Duration) Option {
	return func(m *Modal) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// New creates a Modal over session. The session is borrowed, never closed.
// Nothing is looked up until an operation is called.
func New(session core.Session, opts ...Option) *Modal {
	m := &Modal{
		session:   session,
		container: DefaultContainer,
		timeout:   core.DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Container returns the container locator this Modal resolves.
func (m *Modal) Container() core.Locator {
	return m.container
}

// BodyText returns the visible text of the dialog body.
func (m *Modal) BodyText(ctx context.Context) (string, error) {
	body, err := m.body(ctx)
	if err != nil {
		return "", err
	}
	text, err := body.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	return text, nil
}

// SetRecipient replaces the recipient field's value with value.
func (m *Modal) SetRecipient(ctx context.Context, value string) error {
	return m.fill(ctx, core.ByID(recipientFieldID), value)
}

// SetMessage replaces the message field's value with value.
func (m *Modal) SetMessage(ctx context.Context, value string) error {
	return m.fill(ctx, core.ByID(messageFieldID), value)
}

// Submit clicks the "Send message" button.
func (m *Modal) Submit(ctx context.Context) error {
	return m.click(ctx, core.ByButtonText(submitLabel))
}

// Dismiss clicks the "Close" button. It is independent of Submit; callers
// decide whether and when to dismiss.
func (m *Modal) Dismiss(ctx context.Context) error {
	return m.click(ctx, core.ByButtonText(dismissLabel))
}

func (m *Modal) fill(ctx context.Context, field core.Locator, value string) error {
	el, err := m.find(ctx, field)
	if err != nil {
		return err
	}
	logger.Debug("dialog %s: set %s", m.container.Describe(), field.Describe())
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", field.Describe(), err)
	}
	if err := el.SendKeys(ctx, value); err != nil {
		return fmt.Errorf("type into %s: %w", field.Describe(), err)
	}
	return nil
}

func (m *Modal) click(ctx context.Context, button core.Locator) error {
	el, err := m.find(ctx, button)
	if err != nil {
		return err
	}
	logger.Debug("dialog %s: click %s", m.container.Describe(), button.Describe())
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", button.Describe(), err)
	}
	return nil
}

func (m *Modal) find(ctx context.Context, target core.Locator) (core.Element, error) {
	body, err := m.body(ctx)
	if err != nil {
		return nil, err
	}
	el, err := body.Find(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("dialog body: %w", err)
	}
	return el, nil
}

func (m *Modal) body(ctx context.Context) (core.Element, error) {
	container, err := m.session.WaitVisible(ctx, m.container, m.timeout)
	if err != nil {
		return nil, fmt.Errorf("dialog %s: %w", m.container.Describe(), err)
	}
	body, err := container.Find(ctx, bodyRegion)
	if err != nil {
		return nil, fmt.Errorf("dialog %s: body region: %w", m.container.Describe(), err)
	}
	return body, nil
}
