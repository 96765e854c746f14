package core

import "errors"

// Status represents the execution status of a scenario
type Status int

const (
	StatusPending Status = iota // Not yet started
	StatusRunning               // Currently executing
	StatusPassed                // Completed successfully
	StatusFailed                // Assertion failed or an element could not be driven
	StatusErrored               // Infrastructure problem: session, server, config
	StatusSkipped               // Not run because an earlier scenario stopped the run
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success
func (s Status) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota // No error
	ErrCategoryTimeout                          // Container never became visible in time
	ErrCategoryLookup                           // Expected descendant is absent
	ErrCategoryInteraction                      // Element found but cannot be driven
	ErrCategoryAssertion                        // Page content did not match expectation
	ErrCategoryConnection                       // Browser/grid session lost or unreachable
	ErrCategoryConfig                           // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryLookup:
		return "lookup"
	case ErrCategoryInteraction:
		return "interaction"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// CategoryOf returns the category of err. Errors that are not an
// *ExecutionError are reported as connection problems, since anything the
// backends could classify has already been wrapped.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryConnection
}

// StatusOf maps a scenario error to the status it should be reported with.
func StatusOf(err error) Status {
	switch CategoryOf(err) {
	case ErrCategoryNone:
		return StatusPassed
	case ErrCategoryConnection, ErrCategoryConfig:
		return StatusErrored
	default:
		return StatusFailed
	}
}
