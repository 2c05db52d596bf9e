// Package memexerr defines the typed error taxonomy shared by every layer
// of the memex core. Callers above the engine (REST, CLI, and eventually an
// FFI bridge) switch on Kind rather than parsing error strings.
package memexerr

import "fmt"

// Kind is one of the error categories from the memex error taxonomy.
type Kind string

const (
	Invalid       Kind = "Invalid"
	NotFound      Kind = "NotFound"
	QuotaExceeded Kind = "QuotaExceeded"
	RateLimited   Kind = "RateLimited"
	Busy          Kind = "Busy"
	Timeout       Kind = "Timeout"
	Corrupt       Kind = "Corrupt"
	IO            Kind = "IO"
	BadConfig     Kind = "BadConfig"
)

// Error is the typed error returned by every public operation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an underlying error, preserving it for Unwrap.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and IO
// otherwise — unrecognized errors are treated as infrastructure failures
// rather than silently swallowed.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return IO
}

// As is a thin re-export of errors.As specialized for *Error so callers in
// this module don't need a second import for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if As(err, &e) {
		return e.Kind == kind
	}
	return false
}
