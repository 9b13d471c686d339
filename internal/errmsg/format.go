// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import (
	"errors"
	"fmt"
)

// Op represents an operation that can fail.
type Op string

// Operation constants, grouped by domain.
const (
	// Startup
	OpLoadConfig  Op = "load configuration"
	OpAcquireLock Op = "acquire the instance lock"
	OpOpenPlayer  Op = "connect to the player"
	OpOpenSinks   Op = "open presence outputs"

	// Artwork cache
	OpCacheStats Op = "read the artwork cache"
	OpCacheClear Op = "clear the artwork cache"

	// History
	OpHistoryOpen Op = "open listening history"
	OpHistoryList Op = "list listening history"

	// Configuration
	OpConfigSet Op = "update setting"

	// Last.fm
	OpLastfmToken Op = "request a Last.fm token"
	OpLastfmAuth  Op = "authorize with Last.fm"
	OpLastfmLogin Op = "create a Last.fm session"
)

// Error ties a failure to the operation and subject it concerns.
type Error struct {
	Op      Op
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Context, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches op to err. A nil err stays nil.
func Wrap(op Op, err error) error {
	return WrapWith(op, "", err)
}

// WrapWith attaches op and a subject, such as a key or path, to err.
func WrapWith(op Op, context string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Context: context, Err: err}
}

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// Message renders err for the terminal. The outermost wrapped operation
// names the failure; anything else prints as is.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return FormatWith(e.Op, e.Context, e.Err)
	}
	return err.Error()
}
