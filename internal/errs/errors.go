// Package errs provides the unified error type used across all of schemalens.
//
// Every subsystem (config, identifier validation, the connection manager and
// its backends) returns *errs.Error so the tool layer can report a failure
// without importing driver-specific packages. The kind says which phase
// failed; the cause keeps the original driver error for errors.Is/As.
//
// Usage:
//
//	// In the connection manager, wrap native errors:
//	return errs.Wrap(errs.ErrKindConnectionFailed, "connect to postgres", err)
//
//	// In a tool handler, check error kind:
//	if errs.IsValidation(err) {
//	    // caller sent a bad identifier, do not retry with the same input
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindConfiguration            // missing or malformed settings, fatal at startup
	ErrKindValidation               // malformed identifier from the caller
	ErrKindConnectionFailed         // cannot reach or authenticate to the backend
	ErrKindQueryFailed              // backend rejected or failed a catalog query
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindValidation:
		return "validation"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindQueryFailed:
		return "query_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all schemalens subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsConfiguration reports whether err comes from loading settings.
func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

// IsValidation reports whether err was caused by a malformed identifier.
func IsValidation(err error) bool {
	return KindOf(err) == ErrKindValidation
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a catalog query failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
