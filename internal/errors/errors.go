// Package errors provides the structured error type shared by the archiver.
// Every error carries a kind that decides how far it propagates: configuration
// errors stop the run before any store access, store and commit failures abort
// one entity type, duplicate keys are recovered inside the copy phase.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an archiver error.
type Kind string

const (
	KindConfiguration    Kind = "CONFIGURATION"
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
	KindDuplicateKey     Kind = "DUPLICATE_KEY"
	KindCommitFailure    Kind = "COMMIT_FAILURE"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrDuplicateKey     = &Error{Kind: KindDuplicateKey}
	ErrCommitFailure    = &Error{Kind: KindCommitFailure}
)

// Error is the structured error type used throughout the archiver.
type Error struct {
	Kind    Kind
	Entity  string
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := "[" + string(e.Kind) + "]"
	if e.Entity != "" {
		msg += " " + e.Entity + ":"
	}
	if e.Op != "" {
		msg += " " + e.Op + ":"
	}
	if e.Message != "" {
		msg += " " + e.Message
	}
	if e.Cause != nil {
		if e.Message != "" {
			msg += ":"
		}
		msg += " " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// WithEntity returns a copy of the error attributed to an entity type.
func (e *Error) WithEntity(entity string) *Error {
	cp := *e
	cp.Entity = entity
	return &cp
}

// New creates an error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, fmt.Sprintf(format, args...))
}

func StoreUnavailable(op string, cause error) *Error {
	return Wrap(KindStoreUnavailable, op, cause)
}

func DuplicateKey(op string, cause error) *Error {
	return Wrap(KindDuplicateKey, op, cause)
}

func CommitFailure(op string, cause error) *Error {
	return Wrap(KindCommitFailure, op, cause)
}

// KindOf extracts the kind from an error chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether the outermost *Error in err's chain has kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Is, As and Join re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
