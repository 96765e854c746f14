package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/modal-runner/pkg/core"
	"github.com/devicelab-dev/modal-runner/pkg/dialog"
	"github.com/devicelab-dev/modal-runner/pkg/logger"
)

const (
	modalBodyText      = "This is the place where the content for the modal dialog displays"
	firstModalPrompt   = "Click launch modal button to launch second modal."
	secondModalBody    = "This is the place where the content for the modal dialog displays."
	saveChangesLabel   = "Save Changes"
	sendMessageLabel   = "Send message"
	closeLabel         = "Close"
	complexOpenLabel   = "Open modal for @mdo"
	promptButtonLabel  = "Click Me"
	promptButtonIndex  = 2
	promptText         = "Please enter your name"
	promptAnswer       = "LambdaTest"
	recipient          = "Anton"
	message            = "test message"
	expectedWindowSize = 2
)

var (
	singleModalToggle  = core.ByCSS(`button[data-target="#myModal"]`)
	multiModalToggle   = core.ByCSS(`button[data-target="#myMultiModal"]`)
	secondModalToggle  = core.ByCSS(`button[data-target="#mySecondModal"]`)
	multiModal         = core.ByID("myMultiModal")
	secondModal        = core.ByID("mySecondModal")
	recipientField     = core.ByID("recipient-name")
	twitterFollowLink  = core.ByCSS(`a[title*="Twitter"]`)
	saveChangesButton  = core.ByButtonText(saveChangesLabel)
	sendMessageButton  = core.ByButtonText(sendMessageLabel)
	closeButton        = core.ByButtonText(closeLabel)
	footerRegion       = core.ByCSS(".modal-footer")
	complexOpenButton  = core.ByButtonText(complexOpenLabel)
	promptButtonFamily = core.ByButtonText(promptButtonLabel)
)

// ModalDialog opens the single demo modal, checks its body text and saves.
func ModalDialog(ctx context.Context, s core.Session, env Env) error {
	if err := open(ctx, s, env.Pages.ModalDemo); err != nil {
		return err
	}
	if err := click(ctx, s, singleModalToggle); err != nil {
		return err
	}

	modal := dialog.New(s, dialog.WithTimeout(env.timeout()))
	text, err := modal.BodyText(ctx)
	if err != nil {
		return err
	}
	if text != modalBodyText {
		return core.Mismatch("modal body text", modalBodyText, text)
	}
	return saveChanges(ctx, s, modal.Container(), env.timeout())
}

// MultipleModals opens a modal, launches a second one from its body and
// saves both, reading each body through its own container.
func MultipleModals(ctx context.Context, s core.Session, env Env) error {
	if err := open(ctx, s, env.Pages.ModalDemo); err != nil {
		return err
	}
	if err := click(ctx, s, multiModalToggle); err != nil {
		return err
	}

	first := dialog.New(s, dialog.WithContainer(multiModal), dialog.WithTimeout(env.timeout()))
	if err := expectBodyContains(ctx, first, firstModalPrompt); err != nil {
		return err
	}
	if err := click(ctx, s, secondModalToggle); err != nil {
		return err
	}

	second := dialog.New(s, dialog.WithContainer(secondModal), dialog.WithTimeout(env.timeout()))
	if err := expectBodyContains(ctx, second, secondModalBody); err != nil {
		return err
	}

	if err := saveChanges(ctx, s, second.Container(), env.timeout()); err != nil {
		return err
	}
	return saveChanges(ctx, s, first.Container(), env.timeout())
}

// ComplexDialog fills the recipient and message of a form dialog, sends
// it and closes it. The form fields are driven through the dialog
// accessor; "Send message" and "Close" sit in the footer on the Bootstrap
// page, outside the body region the accessor's Submit and Dismiss search,
// so they are clicked in the footer.
func ComplexDialog(ctx context.Context, s core.Session, env Env) error {
	if err := open(ctx, s, env.Pages.ComplexModal); err != nil {
		return err
	}
	if err := click(ctx, s, complexOpenButton); err != nil {
		return err
	}

	modal := dialog.New(s, dialog.WithTimeout(env.timeout()))
	if err := modal.SetRecipient(ctx, recipient); err != nil {
		return err
	}
	field, err := s.Find(ctx, recipientField)
	if err != nil {
		return err
	}
	got, err := field.Value(ctx)
	if err != nil {
		return err
	}
	if got != recipient {
		return core.Mismatch("recipient", recipient, got)
	}

	if err := modal.SetMessage(ctx, message); err != nil {
		return err
	}
	if err := clickFooter(ctx, s, modal.Container(), sendMessageButton, env.timeout()); err != nil {
		return err
	}
	return clickFooter(ctx, s, modal.Container(), closeButton, env.timeout())
}

// PromptAlert opens the third "Click Me" prompt, checks its text, answers
// it and accepts.
func PromptAlert(ctx context.Context, s core.Session, env Env) error {
	alerts, ok := s.(core.AlertHandler)
	if !ok {
		return unsupported("alerts")
	}
	finder, ok := s.(core.MultiFinder)
	if !ok {
		return unsupported("multi-element lookup")
	}
	if err := open(ctx, s, env.Pages.AlertDemo); err != nil {
		return err
	}

	buttons, err := finder.FindAll(ctx, promptButtonFamily)
	if err != nil {
		return err
	}
	if len(buttons) <= promptButtonIndex {
		return core.NotFound(promptButtonFamily).
			WithMessage(fmt.Sprintf("expected at least %d %s buttons, found %d",
				promptButtonIndex+1, promptButtonFamily.Describe(), len(buttons)))
	}
	if err := buttons[promptButtonIndex].Click(ctx); err != nil {
		return fmt.Errorf("click prompt button: %w", err)
	}

	if err := alerts.WaitAlert(ctx, env.timeout()); err != nil {
		return err
	}
	text, err := alerts.AlertText(ctx)
	if err != nil {
		return err
	}
	if text != promptText {
		return core.Mismatch("alert text", promptText, text)
	}
	if err := alerts.SendAlertText(ctx, promptAnswer); err != nil {
		return err
	}
	return alerts.AcceptAlert(ctx)
}

// PopupWindow follows a link that opens a second window, expects exactly
// two windows and switches to the new one.
func PopupWindow(ctx context.Context, s core.Session, env Env) error {
	windows, ok := s.(core.WindowSwitcher)
	if !ok {
		return unsupported("windows")
	}
	if err := open(ctx, s, env.Pages.PopupDemo); err != nil {
		return err
	}

	main, err := windows.WindowHandle(ctx)
	if err != nil {
		return err
	}
	if err := click(ctx, s, twitterFollowLink); err != nil {
		return err
	}

	handles, err := waitWindows(ctx, windows, expectedWindowSize, env.timeout())
	if err != nil {
		return err
	}
	if len(handles) != expectedWindowSize {
		return core.Mismatch("window count", expectedWindowSize, len(handles))
	}

	for _, h := range handles {
		if !strings.EqualFold(h, main) {
			logger.Debug("scenario: switching to popup window %s", h)
			return windows.SwitchToWindow(ctx, h)
		}
	}
	return core.Mismatch("popup window handle", "a handle other than "+main, handles)
}

func open(ctx context.Context, s core.Session, url string) error {
	nav, ok := s.(core.Navigator)
	if !ok {
		return unsupported("navigation")
	}
	logger.Info("scenario: open %s", url)
	if err := nav.Navigate(ctx, url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

func click(ctx context.Context, s core.Session, loc core.Locator) error {
	el, err := s.Find(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", loc.Describe(), err)
	}
	return nil
}

// saveChanges clicks "Save Changes" anywhere inside the visible container;
// on the demo page it sits in the footer, not the body region.
func saveChanges(ctx context.Context, s core.Session, container core.Locator, timeout time.Duration) error {
	root, err := s.WaitVisible(ctx, container, timeout)
	if err != nil {
		return fmt.Errorf("dialog %s: %w", container.Describe(), err)
	}
	btn, err := root.Find(ctx, saveChangesButton)
	if err != nil {
		return fmt.Errorf("dialog %s: %w", container.Describe(), err)
	}
	if err := btn.Click(ctx); err != nil {
		return fmt.Errorf("dialog %s: click %s: %w", container.Describe(), saveChangesButton.Describe(), err)
	}
	return nil
}

// clickFooter clicks a button in the footer of the visible container.
func clickFooter(ctx context.Context, s core.Session, container, button core.Locator, timeout time.Duration) error {
	root, err := s.WaitVisible(ctx, container, timeout)
	if err != nil {
		return fmt.Errorf("dialog %s: %w", container.Describe(), err)
	}
	footer, err := root.Find(ctx, footerRegion)
	if err != nil {
		return fmt.Errorf("dialog %s: footer: %w", container.Describe(), err)
	}
	btn, err := footer.Find(ctx, button)
	if err != nil {
		return fmt.Errorf("dialog %s: footer: %w", container.Describe(), err)
	}
	logger.Debug("scenario: click %s in footer of %s", button.Describe(), container.Describe())
	if err := btn.Click(ctx); err != nil {
		return fmt.Errorf("dialog %s: click %s: %w", container.Describe(), button.Describe(), err)
	}
	return nil
}

func expectBodyContains(ctx context.Context, m *dialog.Modal, want string) error {
	text, err := m.BodyText(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(text, want) {
		return core.Mismatch(fmt.Sprintf("body of %s", m.Container().Describe()), "text containing "+want, text)
	}
	return nil
}

// waitWindows polls until at least want windows exist or timeout passes,
// then returns whatever handles are open.
func waitWindows(ctx context.Context, w core.WindowSwitcher, want int, timeout time.Duration) ([]string, error) {
	deadline := time.Now().Add(timeout)
	for {
		handles, err := w.WindowHandles(ctx)
		if err != nil {
			return nil, err
		}
		if len(handles) >= want || time.Now().After(deadline) {
			return handles, nil
		}
		select {
		case <-ctx.Done():
			return nil, core.ErrTimeout.WithCause(ctx.Err())
		case <-time.After(core.DefaultPollInterval):
		}
	}
}

func unsupported(what string) error {
	return core.ErrInvalidConfig.WithMessage("backend does not support " + what)
}
