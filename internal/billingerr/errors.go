// Package billingerr classifies failures of the billing core so callers can
// tell bad input, races, missing records, infrastructure and rendering apart.
package billingerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation_error"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindDependency Kind = "dependency_error"
	KindRender     Kind = "render_error"
)

var (
	ErrValidation = errors.New(string(KindValidation))
	ErrConflict   = errors.New(string(KindConflict))
	ErrNotFound   = errors.New(string(KindNotFound))
	ErrDependency = errors.New(string(KindDependency))
	ErrRender     = errors.New(string(KindRender))
)

// Error wraps a cause with its kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// Code is the machine-readable reason, taken from the wrapped cause.
func (e *Error) Code() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func sentinel(kind Kind) error {
	switch kind {
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindDependency:
		return ErrDependency
	case KindRender:
		return ErrRender
	default:
		return nil
	}
}

func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Err: err}
}

func NotFound(op string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

// Dependency wraps a store or network failure. Already classified errors pass
// through untouched so an inner kind is never masked.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return &Error{Kind: KindDependency, Op: op, Err: err}
}

func Render(op string, err error) error {
	return &Error{Kind: KindRender, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error, or "".
func KindOf(err error) Kind {
	var bErr *Error
	if errors.As(err, &bErr) && bErr != nil {
		return bErr.Kind
	}
	return ""
}

// CodeOf returns the reason code of a classified error.
func CodeOf(err error) string {
	var bErr *Error
	if errors.As(err, &bErr) && bErr != nil {
		return bErr.Code()
	}
	return ""
}
