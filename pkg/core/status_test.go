package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusPassed, "passed"},
		{StatusFailed, "failed"},
		{StatusErrored, "errored"},
		{StatusSkipped, "skipped"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminalStatuses := []Status{StatusPassed, StatusFailed, StatusErrored, StatusSkipped}
	nonTerminalStatuses := []Status{StatusPending, StatusRunning}

	for _, s := range terminalStatuses {
		if !s.IsTerminal() {
			t.Errorf("Status(%s).IsTerminal() = false, want true", s)
		}
	}

	for _, s := range nonTerminalStatuses {
		if s.IsTerminal() {
			t.Errorf("Status(%s).IsTerminal() = true, want false", s)
		}
	}
}

func TestStatus_IsSuccess(t *testing.T) {
	if !StatusPassed.IsSuccess() {
		t.Error("StatusPassed.IsSuccess() = false, want true")
	}
	for _, s := range []Status{StatusPending, StatusRunning, StatusFailed, StatusErrored, StatusSkipped} {
		if s.IsSuccess() {
			t.Errorf("Status(%s).IsSuccess() = true, want false", s)
		}
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryLookup, "lookup"},
		{ErrCategoryInteraction, "interaction"},
		{ErrCategoryAssertion, "assertion"},
		{ErrCategoryConnection, "connection"},
		{ErrCategoryConfig, "config"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ErrCategoryNone},
		{"timeout", ErrTimeout, ErrCategoryTimeout},
		{"wrapped not found", fmt.Errorf("body: %w", ErrElementNotFound), ErrCategoryLookup},
		{"intercepted", ErrClickIntercepted.WithCause(errors.New("overlay")), ErrCategoryInteraction},
		{"plain error", errors.New("connection reset"), ErrCategoryConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.err); got != tt.want {
				t.Errorf("CategoryOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(nil); got != StatusPassed {
		t.Errorf("StatusOf(nil) = %s, want passed", got)
	}
	if got := StatusOf(ErrAssertion); got != StatusFailed {
		t.Errorf("StatusOf(assertion) = %s, want failed", got)
	}
	if got := StatusOf(ErrTimeout); got != StatusFailed {
		t.Errorf("StatusOf(timeout) = %s, want failed", got)
	}
	if got := StatusOf(ErrServerUnreachable); got != StatusErrored {
		t.Errorf("StatusOf(server) = %s, want errored", got)
	}
	if got := StatusOf(ErrInvalidConfig); got != StatusErrored {
		t.Errorf("StatusOf(config) = %s, want errored", got)
	}
}
