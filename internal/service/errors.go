package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for transport-level mapping.
type Kind string

const (
	// KindValidation marks a malformed or missing input.
	KindValidation Kind = "validation"
	// KindExtraction marks an upload whose bytes could not be parsed.
	KindExtraction Kind = "extraction"
	// KindModelUnavailable marks an embedding or completion backend failure.
	KindModelUnavailable Kind = "model_unavailable"
	// KindIndex marks a vector store failure.
	KindIndex Kind = "index"
)

// Error is a classified service error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of a service error, or KindIndex for errors
// that were never classified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindIndex
}
