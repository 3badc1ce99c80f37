package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors. The workflow codes (REQUEST through
// RESTORE) identify which stage of a pull/push failed and are preserved
// unchanged all the way to the CLI boundary.
const (
	ErrConfig     = "CONFIG"
	ErrAPI        = "API"
	ErrRequest    = "REQUEST"
	ErrJobFailed  = "JOB_FAILED"
	ErrJobTimeout = "JOB_TIMEOUT"
	ErrTransfer   = "TRANSFER"
	ErrArchive    = "ARCHIVE"
	ErrRestore    = "RESTORE"
	ErrExec       = "EXEC"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrAPI code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrAPI,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with formatted output.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var nbErr *Error
	if errors.As(err, &nbErr) {
		return nbErr.Code == code
	}
	return false
}

// Code returns the code of a structured error, or "" for any other error.
func Code(err error) string {
	var nbErr *Error
	if errors.As(err, &nbErr) {
		return nbErr.Code
	}
	return ""
}
