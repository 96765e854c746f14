package webdriver

import (
	"fmt"

	"github.com/devicelab-dev/modal-runner/pkg/core"
)

// W3C WebDriver error codes this package distinguishes.
// https://www.w3.org/TR/webdriver2/#errors
var w3cErrors = map[string]*core.ExecutionError{
	"no such element":           core.ErrElementNotFound,
	"stale element reference":   core.ErrElementNotFound,
	"element not interactable":  core.ErrElementNotInteractable,
	"invalid element state":     core.ErrElementNotInteractable,
	"element click intercepted": core.ErrClickIntercepted,
	"timeout":                   core.ErrTimeout,
	"script timeout":            core.ErrTimeout,
	"no such alert":             core.ErrNoSuchAlert,
	"no such window":            core.ErrNoSuchWindow,
	"session not created":       core.ErrSessionNotCreated,
	"invalid session id":        core.ErrSessionNotCreated,
	"invalid selector":          core.ErrInvalidConfig,
	"invalid argument":          core.ErrInvalidConfig,
}

// Error is an unclassified WebDriver error.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// classify maps a W3C error code to the core taxonomy, keeping the server's
// original code and message as the cause.
func classify(code, message string) error {
	raw := &Error{Code: code, Message: message}
	if sentinel, ok := w3cErrors[code]; ok {
		return sentinel.WithCause(raw).WithDetails(map[string]interface{}{"w3c": code})
	}
	return raw
}
