package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure for retry decisions and reporting.
type Kind string

const (
	// KindNotFound covers missing records, companies, and storage
	// connections. Terminal, never retried.
	KindNotFound Kind = "not_found"

	// KindPrecondition covers invalid inputs discovered before any slow
	// work, e.g. a zero-duration video. Terminal.
	KindPrecondition Kind = "precondition"

	// KindExternalProcess covers non-zero exits, timeouts and missing
	// output artifacts from child processes. Retryable up to the cap.
	KindExternalProcess Kind = "external_process"

	// KindStorage covers transient storage backend failures. Retryable.
	KindStorage Kind = "storage"

	// KindUnsupported marks an operation a storage backend does not
	// implement. Terminal, surfaced distinctly from transient failures.
	KindUnsupported Kind = "unsupported"

	// KindInvariant marks a detected state invariant violation.
	KindInvariant Kind = "invariant"

	KindInternal Kind = "internal"
)

type Error struct {
	Kind     Kind
	Message  string
	Internal error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Internal: err}
}

// KindOf returns the classification of err, or KindInternal when err carries
// no explicit kind.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Retryable reports whether another attempt could plausibly succeed.
// Unclassified errors are treated as retryable so that transient
// infrastructure failures (database, network) get the benefit of the doubt.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindPrecondition, KindUnsupported, KindInvariant:
		return false
	default:
		return true
	}
}
