// Package apperr classifies errors into a small set of kinds
// (NotFound, AlreadyExists, Transient, VerificationFailed, InvalidInput,
// Fatal) and maps them to HTTP status codes at the handler boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the abstract classification of an error.
type Kind int

const (
	KindNotFound Kind = iota
	KindAlreadyExists
	KindTransient
	KindVerificationFailed
	KindInvalidInput
	KindFatal
)

// Error wraps an underlying error with its classified Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err under the given kind and operation label.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound, AlreadyExists, Transient, VerificationFailed, InvalidInput,
// Fatal are convenience constructors mirroring New.
func NotFound(op string, err error) *Error           { return New(KindNotFound, op, err) }
func AlreadyExists(op string, err error) *Error       { return New(KindAlreadyExists, op, err) }
func Transient(op string, err error) *Error           { return New(KindTransient, op, err) }
func VerificationFailed(op string, err error) *Error  { return New(KindVerificationFailed, op, err) }
func InvalidInput(op string, err error) *Error        { return New(KindInvalidInput, op, err) }
func Fatal(op string, err error) *Error               { return New(KindFatal, op, err) }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; ok is false for plain errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// HTTPStatus maps err's classified kind to the user-visible status code:
// missing auction -> 404, malformed filter -> 4xx, downstream outage
// after retries -> 5xx.
func HTTPStatus(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindAlreadyExists:
		return http.StatusOK
	case KindTransient, KindVerificationFailed, KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
