package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a coded command error. Codes follow KMS-<AREA>-<NNNN>.
type Error struct {
	Code    string // Error code (e.g., "KMS-AUTH-4010")
	Message string // Short description of the class
	Details string // Diagnostic shown to the user
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Diagnostic is the line printed for the failure.
func (e *Error) Diagnostic() string {
	if e.Details != "" {
		return e.Details
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details string) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// Error classes.
var (
	// ErrConfig: configuration unreadable or invalid. Fatal.
	ErrConfig = NewError("KMS-CONF-5000", "configuration unavailable")
	// ErrDescriptor: interface definition unusable. Fatal.
	ErrDescriptor = NewError("KMS-DESC-5000", "interface definition unavailable")
	// ErrUnknownCommand: no such command in the registry.
	ErrUnknownCommand = NewError("KMS-CLI-4040", "unknown command")
	// ErrTokenMissing: the command's token is absent from the config.
	ErrTokenMissing = NewError("KMS-AUTH-4010", "token missing")
	// ErrInput: an input file or argument is unusable.
	ErrInput = NewError("KMS-IO-4000", "input error")
	// ErrOutput: the result could not be written.
	ErrOutput = NewError("KMS-IO-5000", "output error")
	// ErrTransport: the call did not complete or broke the protocol.
	ErrTransport = NewError("KMS-RPC-5020", "remote call failed")
	// ErrRemote: the server reported an error.
	ErrRemote = NewError("KMS-RPC-4220", "server reported an error")
)

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return strings.HasPrefix(e.Code, "KMS-CONF-") || strings.HasPrefix(e.Code, "KMS-DESC-")
}

// Code extracts the error code, or "" for foreign errors.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
