package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors.
//
// The first group is the execution and parse taxonomy carried on task
// results; the rest cover the surrounding tool.
const (
	ErrSpawn          = "SPAWN"           // external process could not be started
	ErrTimeout        = "TIMEOUT"         // process exceeded its deadline and was killed
	ErrExit           = "EXIT"            // process ran but exited non-zero
	ErrMalformed      = "MALFORMED"       // payload shape could not be parsed at all
	ErrPartial        = "PARTIAL"         // some elements of a batch were dropped
	ErrNoConnectivity = "NO_CONNECTIVITY" // precondition skip, not a failure

	ErrConfig    = "CONFIG"
	ErrSSH       = "SSH"
	ErrQueueFull = "QUEUE_FULL"
	ErrAction    = "ACTION"
	ErrStorage   = "STORAGE"

	// ErrPermission means the OS refused the query, e.g. Wi-Fi scans without
	// location access.
	ErrPermission = "PERMISSION"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Formatted output:
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

// Wrap wraps an existing error with a message, defaulting to ErrSpawn code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSpawn,
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

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Short returns the message and cause on one line, for status bars and logs.
func (e *Error) Short() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + strings.TrimSpace(firstLine(e.Cause.Error()))
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost structured Error in err's chain,
// or "" if there is none.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var npErr *Error
	if errors.As(err, &npErr) {
		return npErr.Code
	}
	return ""
}

// Transient reports whether a failure code describes temporary unavailability
// that is worth retrying. Output-shape and exit-status failures are not.
func Transient(code string) bool {
	return code == ErrSpawn || code == ErrTimeout
}

// ExitError carries a process exit code out of a command's RunE so main can
// exit with it.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError for the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode extracts the exit code from an ExitError in err's chain.
func GetExitCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

func firstLine(s string) string {
	s = strings.TrimPrefix(s, "✗ ")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
