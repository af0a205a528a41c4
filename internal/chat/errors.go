package chat

import (
	"errors"
	"fmt"
)

// MaxMessageChars bounds a user message after trimming. Enforced on both
// the dispatcher and the pipeline so a misbehaving client cannot bypass it.
const MaxMessageChars = 1000

// Kind classifies a pipeline failure. Degraded retrieval is deliberately
// absent: falling back to a context-free prompt is not a failure the
// caller ever sees.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTransient
	KindProvider
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindProvider:
		return "provider"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String, for kinds carried over the
// wire. Unrecognized input parses as KindUnknown.
func ParseKind(s string) Kind {
	switch s {
	case "validation":
		return KindValidation
	case "transient":
		return KindTransient
	case "provider":
		return KindProvider
	case "persistence":
		return KindPersistence
	default:
		return KindUnknown
	}
}

// Error is the single failure type crossing package boundaries. Code is
// machine-readable and stable; Message is for humans.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Transient(code, message string, err error) *Error {
	return &Error{Kind: KindTransient, Code: code, Message: message, Err: err}
}

func Provider(code, message string, err error) *Error {
	return &Error{Kind: KindProvider, Code: code, Message: message, Err: err}
}

func Persistence(code, message string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: code, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// CodeOf extracts the machine-readable code, or "internal" when the
// error did not come out of this taxonomy.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return "internal"
}
